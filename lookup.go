package studiosync

import (
	"context"
	"fmt"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/agentstation/studiosync/pkg/catalog"
	"github.com/agentstation/studiosync/pkg/errors"
	"github.com/agentstation/studiosync/pkg/logging"
	"github.com/agentstation/studiosync/pkg/registry"
)

// maxListed bounds the names quoted in an ambiguity error.
const maxListed = 10

// FindStudioByName looks a local studio up by name: exact case-insensitive
// first, then the fuzzy matcher (unless disabled), then a unique substring
// and finally a unique subsequence match.
func (s *Syncer) FindStudioByName(ctx context.Context, name string) (*catalog.Studio, error) {
	ctx = s.context(ctx)
	log := logging.Ctx(ctx)
	if strings.TrimSpace(name) == "" {
		return nil, errors.NewValidationError("name", name, "cannot be empty")
	}
	studios, err := s.catalog.AllStudios(ctx)
	if err != nil {
		return nil, errors.WrapResource("list", "studios", "", err)
	}

	if st := catalog.FindByName(studios, name); st != nil {
		return st, nil
	}

	if s.matcher.Fuzzy() {
		cands := make([]registry.Candidate, len(studios))
		for i, st := range studios {
			cands[i] = registry.Candidate{RemoteID: st.ID, Name: st.Name}
		}
		if best, ok := s.matcher.Best(ctx, name, cands); ok {
			log.Info().Str("name", name).Str("match", best.Candidate.Name).Float64("score", best.Score).Msg("Found local studio by fuzzy match")
			return byID(studios, best.Candidate.RemoteID), nil
		}
	}

	key := catalog.NameKey(name)
	var partial []*catalog.Studio
	for _, st := range studios {
		if strings.Contains(catalog.NameKey(st.Name), key) {
			partial = append(partial, st)
		}
	}
	if st, err := unique(name, partial); st != nil || err != nil {
		return st, err
	}

	keys := make(nameKeys, len(studios))
	for i, st := range studios {
		keys[i] = catalog.NameKey(st.Name)
	}
	var subseq []*catalog.Studio
	for _, m := range fuzzy.FindFrom(key, keys) {
		subseq = append(subseq, studios[m.Index])
	}
	if st, err := unique(name, subseq); st != nil || err != nil {
		return st, err
	}
	return nil, errors.NewNotFoundError("studio", name)
}

type nameKeys []string

func (k nameKeys) String(i int) string { return k[i] }
func (k nameKeys) Len() int            { return len(k) }

func unique(name string, found []*catalog.Studio) (*catalog.Studio, error) {
	switch len(found) {
	case 0:
		return nil, nil
	case 1:
		return found[0], nil
	}
	names := make([]string, 0, maxListed)
	for _, st := range found[:min(len(found), maxListed)] {
		names = append(names, fmt.Sprintf("%s (%s)", st.Name, st.ID))
	}
	if len(found) > maxListed {
		names = append(names, fmt.Sprintf("and %d more", len(found)-maxListed))
	}
	return nil, fmt.Errorf("%w: %q matches %s", errors.ErrAmbiguous, name, strings.Join(names, ", "))
}

func byID(studios []*catalog.Studio, id string) *catalog.Studio {
	for _, st := range studios {
		if st.ID == id {
			return st
		}
	}
	return nil
}
