package speech

import "strings"

// Voice describe una voz de la plataforma local.
type Voice struct {
	Name   string `json:"name"`
	Lang   string `json:"lang,omitempty"`
	Gender string `json:"gender,omitempty"`
}

// PreferredVoices en orden de preferencia.
var PreferredVoices = []string{
	"Samantha",
	"Google US English Female",
	"Microsoft Zira",
	"Google UK English Female",
	"Karen",
	"Microsoft Susan",
	"Female",
}

// PickVoice: primero una preferida, luego cualquier voz femenina, luego la
// primera. nil si no hay voces.
func PickVoice(voices []Voice) *Voice {
	if len(voices) == 0 {
		return nil
	}
	for _, pref := range PreferredVoices {
		for i := range voices {
			if strings.Contains(strings.ToLower(voices[i].Name), strings.ToLower(pref)) {
				return &voices[i]
			}
		}
	}
	for i := range voices {
		if isFemale(voices[i]) {
			return &voices[i]
		}
	}
	return &voices[0]
}

func isFemale(v Voice) bool {
	g := strings.ToLower(v.Gender)
	if g == "f" || g == "female" {
		return true
	}
	return strings.Contains(strings.ToLower(v.Name), "female")
}
