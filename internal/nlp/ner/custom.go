package ner

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/pkg/types"
)

var placeholderRe = regexp.MustCompile(`/temp[0-9]+/`)

// candidate is a text that, when found in a message, resolves to value for
// one of params.
type candidate struct {
	text   string
	params []*types.IntentParameter
	value  string
}

func upperName(e *types.Entity) string {
	return strings.ToUpper(e.Name)
}

// entityCandidates lists every value and synonym of the custom entities an
// intent references, mapped to the parameters that can take it.
func entityCandidates(intent *types.Intent, processed bool) []*candidate {
	// Parameters grouped by entity, entities in first-reference order.
	var entities []*types.Entity
	byEntity := make(map[*types.Entity][]*types.IntentParameter)
	for _, p := range intent.Parameters {
		if p.Entity == nil {
			continue
		}
		if _, ok := byEntity[p.Entity]; !ok {
			entities = append(entities, p.Entity)
		}
		byEntity[p.Entity] = append(byEntity[p.Entity], p)
	}

	var out []*candidate
	index := make(map[string]*candidate)
	for _, entity := range entities {
		if entity.Base {
			continue
		}
		params := byEntity[entity]

		// text -> canonical value within this entity; first wins.
		var texts []string
		values := make(map[string]string)
		for _, entry := range entity.Entries {
			value, synonyms := entry.Value, entry.Synonyms
			if processed && entry.Processed {
				value, synonyms = entry.ProcessedValue, entry.ProcessedSynonyms
			}
			for _, t := range append([]string{value}, synonyms...) {
				if _, dup := values[t]; dup {
					continue
				}
				values[t] = entry.Value
				texts = append(texts, t)
			}
		}

		for _, t := range texts {
			value := values[t]
			existing, ok := index[t]
			if !ok {
				c := &candidate{text: t, params: append([]*types.IntentParameter(nil), params...), value: value}
				index[t] = c
				out = append(out, c)
				continue
			}
			if existing.value != value {
				// Same text with a different meaning in another entity.
				continue
			}
			existing.params = mergeInDeclarationOrder(intent, existing.params, params)
		}
	}
	return out
}

func mergeInDeclarationOrder(intent *types.Intent, a, b []*types.IntentParameter) []*types.IntentParameter {
	in := make(map[*types.IntentParameter]bool, len(a)+len(b))
	for _, p := range a {
		in[p] = true
	}
	for _, p := range b {
		in[p] = true
	}
	var out []*types.IntentParameter
	for _, p := range intent.Parameters {
		if in[p] {
			out = append(out, p)
		}
	}
	return out
}

// matchCustomEntities rewrites message for intent, replacing found custom
// entity values by the upper-cased entity name.
func matchCustomEntities(intent *types.Intent, message string, processed bool) (string, []*types.MatchedParameter) {
	candidates := entityCandidates(intent, processed)
	sort.SliceStable(candidates, func(i, j int) bool {
		li, lj := utf8.RuneCountInString(candidates[i].text), utf8.RuneCountInString(candidates[j].text)
		if li != lj {
			return li > lj
		}
		return strings.ToLower(candidates[i].text) > strings.ToLower(candidates[j].text)
	})

	sentence := message
	temps := make(map[string]*candidate)
	for _, c := range candidates {
		if !types.ContainsWord(sentence, c.text) {
			continue
		}
		temp := fmt.Sprintf("/temp%d/", len(temps)+1)
		sentence = types.ReplaceWord(sentence, c.text, temp)
		temps[temp] = c
	}

	var matches []*types.MatchedParameter
	done := make(map[*types.IntentParameter]bool)
	for len(temps) > 0 {
		temp := ""
		for _, t := range placeholderRe.FindAllString(sentence, -1) {
			if _, ok := temps[t]; ok {
				temp = t
				break
			}
		}
		if temp == "" {
			break
		}
		c := temps[temp]
		var param *types.IntentParameter
		for _, p := range c.params {
			if !done[p] {
				param = p
				break
			}
		}
		if param == nil {
			// More values than parameters of that entity.
			sentence = strings.Replace(sentence, temp, c.value, 1)
		} else {
			done[param] = true
			sentence = strings.Replace(sentence, temp, upperName(param.Entity), 1)
			matches = append(matches, types.NewMatchedParameter(param.Name, c.value, nil))
		}
		delete(temps, temp)
	}
	return sentence, matches
}
