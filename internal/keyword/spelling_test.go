package keyword

import (
	"errors"
	"testing"
)

type mockTermDictionary struct {
	terms map[string]int
	err   error
}

func (m *mockTermDictionary) GetAllTerms() ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make([]string, 0, len(m.terms))
	for t := range m.terms {
		out = append(out, t)
	}
	return out, nil
}

func (m *mockTermDictionary) GetTermFrequency(term string) (int, error) {
	return m.terms[term], nil
}

func TestSpellChecker_Suggest(t *testing.T) {
	dict := &mockTermDictionary{terms: map[string]int{
		"retrieval": 10,
		"retrieve":  3,
		"river":     50,
		"vector":    7,
	}}
	sc := NewSpellChecker(dict)

	got, err := sc.Suggest("Retreival")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) == 0 || got[0].Term != "retrieval" {
		t.Fatalf("Suggest(Retreival) = %+v, want retrieval first", got)
	}
	if got[0].Distance != 2 {
		t.Errorf("distance = %d, want 2", got[0].Distance)
	}
	for _, s := range got {
		if s.Term == "river" {
			t.Errorf("river is too far from retreival: %+v", s)
		}
	}
}

func TestSpellChecker_Options(t *testing.T) {
	dict := &mockTermDictionary{terms: map[string]int{"cat": 1, "bat": 5, "hat": 9}}
	sc := NewSpellChecker(dict, WithMinFrequency(2), WithMaxSuggestions(1), WithMaxDistance(1))
	got, err := sc.Suggest("rat")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Term != "hat" {
		t.Errorf("Suggest(rat) = %+v, want [hat]", got)
	}
}

func TestSpellChecker_Correct(t *testing.T) {
	dict := &mockTermDictionary{terms: map[string]int{"vector": 4, "search": 6}}
	sc := NewSpellChecker(dict)

	corrected, changed, err := sc.Correct("vectr serch")
	if err != nil {
		t.Fatal(err)
	}
	if !changed || corrected != "vector search" {
		t.Errorf("Correct = %q, %v; want %q, true", corrected, changed, "vector search")
	}

	corrected, changed, _ = sc.Correct("vector search")
	if changed || corrected != "vector search" {
		t.Errorf("known terms should be unchanged, got %q, %v", corrected, changed)
	}
}

func TestSpellChecker_DictionaryError(t *testing.T) {
	sc := NewSpellChecker(&mockTermDictionary{err: errors.New("boom")})
	if _, err := sc.Suggest("x"); err == nil {
		t.Error("expected error from Suggest")
	}
	if _, _, err := sc.Correct("x"); err == nil {
		t.Error("expected error from Correct")
	}
}
