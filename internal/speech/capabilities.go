package speech

import "os/exec"

// Capabilities es lo que la plataforma puede hacer con voz.
type Capabilities struct {
	Microphone        bool `json:"microphone"`
	SpeechRecognition bool `json:"speech_recognition"`
	SpeechSynthesis   bool `json:"speech_synthesis"`
}

// VoiceInput indica si se puede capturar voz de punta a punta.
func (c Capabilities) VoiceInput() bool {
	return c.Microphone && c.SpeechRecognition
}

// CapabilityProvider se consulta una vez al elegir el camino de voz o texto.
type CapabilityProvider interface {
	Capabilities() Capabilities
}

// StaticCapabilities devuelve siempre el mismo resultado.
type StaticCapabilities Capabilities

func (s StaticCapabilities) Capabilities() Capabilities { return Capabilities(s) }

// DetectLocal revisa las herramientas de la terminal: ffmpeg para grabar,
// ffplay o espeak-ng para hablar. remoteSTT indica si hay endpoint de transcripción.
func DetectLocal(remoteSTT, remoteTTS bool) StaticCapabilities {
	has := func(bin string) bool {
		_, err := exec.LookPath(bin)
		return err == nil
	}
	return StaticCapabilities{
		Microphone:        has("ffmpeg"),
		SpeechRecognition: remoteSTT,
		SpeechSynthesis:   (remoteTTS && has("ffplay")) || has("espeak-ng"),
	}
}
