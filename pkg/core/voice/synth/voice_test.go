package synth

import "testing"

func TestClassifyVoice(t *testing.T) {
	tests := []struct {
		name string
		want Gender
	}{
		{"Google UK English Female", GenderFemale},
		{"Google UK English Male", GenderMale},
		{"Microsoft Zira - English (United States)", GenderFemale},
		{"Daniel", GenderMale},
		{"Samantha (Enhanced)", GenderFemale},
		{"Default Voice", GenderUnknown},
		{"Roman Narrator", GenderUnknown},
	}
	for _, tt := range tests {
		if got := ClassifyVoice(Voice{Name: tt.name}); got != tt.want {
			t.Fatalf("ClassifyVoice(%q)=%v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestClassifyVoice_DeclaredGenderWins(t *testing.T) {
	v := Voice{Name: "Daniel", Gender: GenderFemale}
	if got := ClassifyVoice(v); got != GenderFemale {
		t.Fatalf("ClassifyVoice(%+v)=%v, want female", v, got)
	}
}

func TestSelectVoice_PreferredGender(t *testing.T) {
	voices := []Voice{
		{ID: "1", Name: "Daniel", Language: "en-GB"},
		{ID: "2", Name: "Samantha", Language: "en-US"},
		{ID: "3", Name: "Amelie", Language: "fr-FR"},
	}
	sel := SelectVoice(voices, true, "en-US")
	if sel.Voice == nil || sel.Voice.ID != "2" || !sel.IsFemale {
		t.Fatalf("female selection=%+v", sel)
	}
	sel = SelectVoice(voices, false, "en-US")
	if sel.Voice == nil || sel.Voice.ID != "1" || sel.IsFemale {
		t.Fatalf("male selection=%+v", sel)
	}
}

func TestSelectVoice_LocaleFallback(t *testing.T) {
	voices := []Voice{
		{ID: "de", Name: "Anna", Language: "de-DE"},
		{ID: "fr", Name: "Amelie", Language: "fr_FR"},
	}
	sel := SelectVoice(voices, false, "fr-CA")
	if sel.Voice == nil || sel.Voice.ID != "fr" {
		t.Fatalf("selection=%+v, want locale match", sel)
	}
}

func TestSelectVoice_DefaultVoiceOnly(t *testing.T) {
	for _, preferFemale := range []bool{true, false} {
		sel := SelectVoice([]Voice{{ID: "default", Name: "Default Voice"}}, preferFemale, "en-US")
		if sel.Voice == nil || sel.Voice.ID != "default" {
			t.Fatalf("selection=%+v, want Default Voice", sel)
		}
		if sel.IsFemale != preferFemale {
			t.Fatalf("IsFemale=%v, want preference %v for unknown voice", sel.IsFemale, preferFemale)
		}
	}
}

func TestSelectVoice_Empty(t *testing.T) {
	if sel := SelectVoice(nil, true, "en"); sel.Voice != nil {
		t.Fatalf("selection=%+v, want nil voice", sel)
	}
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"A. B. C.", []string{"A.", "B.", "C."}},
		{"Hello there! How are you? Fine", []string{"Hello there!", "How are you?", "Fine"}},
		{"Really?! Yes...", []string{"Really?!", "Yes..."}},
		{"   ", nil},
		{"No terminator", []string{"No terminator"}},
	}
	for _, tt := range tests {
		got := SplitSentences(tt.in)
		if len(got) != len(tt.want) {
			t.Fatalf("SplitSentences(%q)=%q, want %q", tt.in, got, tt.want)
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Fatalf("SplitSentences(%q)[%d]=%q, want %q", tt.in, i, got[i], tt.want[i])
			}
		}
	}
}
