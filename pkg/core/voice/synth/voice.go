package synth

import (
	"context"
	"strings"
	"unicode"
)

// Voice is one entry of a synthesis voice catalog.
type Voice struct {
	ID       string
	Name     string
	Language string

	// Gender is set when the catalog declares it; otherwise it is guessed
	// from Name.
	Gender Gender
}

// VoiceCatalog lists available voices. Implementations may populate lazily.
type VoiceCatalog interface {
	Voices(ctx context.Context) ([]Voice, error)
}

// VoiceCatalogFunc adapts a function to VoiceCatalog.
type VoiceCatalogFunc func(ctx context.Context) ([]Voice, error)

// Voices implements VoiceCatalog.
func (f VoiceCatalogFunc) Voices(ctx context.Context) ([]Voice, error) {
	return f(ctx)
}

// Gender is the heuristic classification of a voice.
type Gender int

const (
	GenderUnknown Gender = iota
	GenderMale
	GenderFemale
)

// String returns the gender name.
func (g Gender) String() string {
	switch g {
	case GenderMale:
		return "male"
	case GenderFemale:
		return "female"
	default:
		return "unknown"
	}
}

// VoiceSelection is the persona chosen for a session.
type VoiceSelection struct {
	// Voice is nil when the engine default is used.
	Voice *Voice

	// IsFemale drives avatar choice only.
	IsFemale bool
}

var femaleNames = map[string]bool{
	"female": true, "woman": true, "girl": true,
	"samantha": true, "victoria": true, "karen": true, "zira": true,
	"susan": true, "allison": true, "ava": true, "serena": true,
	"fiona": true, "moira": true, "tessa": true, "veena": true,
	"hazel": true, "sarah": true, "emma": true, "olivia": true,
	"aria": true, "jenny": true, "joanna": true, "kendra": true,
	"rachel": true, "charlotte": true, "alice": true, "matilda": true,
}

var maleNames = map[string]bool{
	"male": true, "man": true, "boy": true,
	"daniel": true, "alex": true, "fred": true, "david": true,
	"mark": true, "george": true, "james": true, "tom": true,
	"thomas": true, "oliver": true, "guy": true, "ryan": true,
	"brian": true, "matthew": true, "joey": true, "adam": true,
	"josh": true, "antoni": true, "arnold": true, "sam": true,
}

// ClassifyVoice returns the declared gender, or guesses it from words in the name.
func ClassifyVoice(v Voice) Gender {
	if v.Gender != GenderUnknown {
		return v.Gender
	}
	words := strings.FieldsFunc(strings.ToLower(v.Name), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	// Explicit markers outrank first names ("Google UK English Female").
	for _, w := range words {
		switch w {
		case "female", "woman":
			return GenderFemale
		case "male", "man":
			return GenderMale
		}
	}
	for _, w := range words {
		if femaleNames[w] {
			return GenderFemale
		}
		if maleNames[w] {
			return GenderMale
		}
	}
	return GenderUnknown
}

// SelectVoice picks a voice of the preferred gender, then any voice matching
// locale, then the first voice. It returns a nil Voice only for an empty list.
func SelectVoice(voices []Voice, preferFemale bool, locale string) VoiceSelection {
	want := GenderMale
	if preferFemale {
		want = GenderFemale
	}

	pick := func(match func(Voice) bool) *Voice {
		for i := range voices {
			if match(voices[i]) {
				v := voices[i]
				return &v
			}
		}
		return nil
	}

	lang := languageOf(locale)
	chosen := pick(func(v Voice) bool {
		return ClassifyVoice(v) == want && (lang == "" || languageOf(v.Language) == lang)
	})
	if chosen == nil {
		chosen = pick(func(v Voice) bool { return ClassifyVoice(v) == want })
	}
	if chosen == nil && lang != "" {
		chosen = pick(func(v Voice) bool { return languageOf(v.Language) == lang })
	}
	if chosen == nil && len(voices) > 0 {
		v := voices[0]
		chosen = &v
	}

	isFemale := preferFemale
	if chosen != nil {
		switch ClassifyVoice(*chosen) {
		case GenderFemale:
			isFemale = true
		case GenderMale:
			isFemale = false
		}
	}
	return VoiceSelection{Voice: chosen, IsFemale: isFemale}
}

// languageOf returns the lowercase primary subtag of a locale ("en-US" → "en").
func languageOf(locale string) string {
	locale = strings.ToLower(strings.TrimSpace(locale))
	if i := strings.IndexAny(locale, "-_."); i >= 0 {
		locale = locale[:i]
	}
	return locale
}
