package transcription

import "encoding/json"

// ProviderSettings is a tagged union over the per-provider configuration a
// bot or async transcription job carries. Every variant keeps an Extra
// escape hatch so forward-compatible provider fields can round-trip through
// storage without a schema migration.
type ProviderSettings struct {
	Provider      Provider               `json:"provider"`
	OpenAI        *OpenAISettings        `json:"openai,omitempty"`
	AssemblyAI    *AssemblyAISettings    `json:"assembly_ai,omitempty"`
	Deepgram      *DeepgramSettings      `json:"deepgram,omitempty"`
	Gladia        *GladiaSettings        `json:"gladia,omitempty"`
	Sarvam        *SarvamSettings        `json:"sarvam,omitempty"`
	ElevenLabs    *ElevenLabsSettings    `json:"eleven_labs,omitempty"`
	Kyutai        *KyutaiSettings        `json:"kyutai,omitempty"`
	ClosedCaption *ClosedCaptionSettings `json:"closed_caption,omitempty"`
}

// DefaultOpenAIModel is used when a job's settings don't name one, mirroring
// the source system's OPENAI_MODEL_NAME environment default.
const DefaultOpenAIModel = "gpt-4o-transcribe"

// openAIDiarizeModel is the only OpenAI model that accepts ResponseFormat
// and ChunkingStrategy; for any other model those fields don't apply.
const openAIDiarizeModel = "gpt-4o-transcribe-diarize"

type OpenAISettings struct {
	Prompt           string                     `json:"prompt,omitempty"`
	Model            string                     `json:"model,omitempty"`
	Language         string                     `json:"language,omitempty"`
	ResponseFormat   string                     `json:"response_format,omitempty"`
	ChunkingStrategy string                     `json:"chunking_strategy,omitempty"`
	Extra            map[string]json.RawMessage `json:"extra,omitempty"`
}

// ResolvedModel returns Model if set, else DefaultOpenAIModel.
func (s *OpenAISettings) ResolvedModel() string {
	if s == nil || s.Model == "" {
		return DefaultOpenAIModel
	}
	return s.Model
}

// ResolvedResponseFormat returns ResponseFormat only for the diarizing
// model, defaulting it to "diarized_json"; every other model ignores the
// field entirely, matching the upstream system.
func (s *OpenAISettings) ResolvedResponseFormat() string {
	if s.ResolvedModel() != openAIDiarizeModel {
		return ""
	}
	if s == nil || s.ResponseFormat == "" {
		return "diarized_json"
	}
	return s.ResponseFormat
}

// ResolvedChunkingStrategy returns ChunkingStrategy only for the diarizing
// model, defaulting it to "auto".
func (s *OpenAISettings) ResolvedChunkingStrategy() string {
	if s.ResolvedModel() != openAIDiarizeModel {
		return ""
	}
	if s == nil || s.ChunkingStrategy == "" {
		return "auto"
	}
	return s.ChunkingStrategy
}

// LanguageDetectionOptions narrows the languages AssemblyAI attempts to
// detect among and what it falls back to when none of them match.
type LanguageDetectionOptions struct {
	ExpectedLanguages []string `json:"expected_languages,omitempty"`
	FallbackLanguage  string   `json:"fallback_language,omitempty"`
}

// Resolved fills the documented defaults
// ("all" expected languages, "auto" fallback) when omitted.
func (o *LanguageDetectionOptions) Resolved() LanguageDetectionOptions {
	if o == nil {
		return LanguageDetectionOptions{ExpectedLanguages: []string{"all"}, FallbackLanguage: "auto"}
	}
	resolved := *o
	if len(resolved.ExpectedLanguages) == 0 {
		resolved.ExpectedLanguages = []string{"all"}
	}
	if resolved.FallbackLanguage == "" {
		resolved.FallbackLanguage = "auto"
	}
	return resolved
}

type AssemblyAISettings struct {
	LanguageCode             string                     `json:"language_code,omitempty"`
	LanguageDetection        bool                       `json:"language_detection,omitempty"`
	KeytermsPrompt           []string                   `json:"keyterms_prompt,omitempty"`
	SpeechModel              string                     `json:"speech_model,omitempty"`
	SpeakerLabels            bool                       `json:"speaker_labels,omitempty"`
	UseEUServer              bool                       `json:"use_eu_server,omitempty"`
	LanguageDetectionOptions *LanguageDetectionOptions  `json:"language_detection_options,omitempty"`
	Extra                    map[string]json.RawMessage `json:"extra,omitempty"`
}

// BaseURL returns the EU or global AssemblyAI endpoint per UseEUServer.
func (s *AssemblyAISettings) BaseURL() string {
	if s != nil && s.UseEUServer {
		return "https://api.eu.assemblyai.com/v2"
	}
	return "https://api.assemblyai.com/v2"
}

// nova2OnlyLanguages are the Deepgram language codes nova-3 doesn't support
// yet, forcing a fall back to nova-2.
var nova2OnlyLanguages = map[string]bool{
	"zh": true, "zh-CN": true, "zh-Hans": true, "zh-TW": true, "zh-Hant": true, "zh-HK": true,
	"th": true, "th-TH": true,
}

type DeepgramSettings struct {
	Language       string                     `json:"language,omitempty"`
	DetectLanguage bool                       `json:"detect_language,omitempty"`
	Callback       string                     `json:"callback,omitempty"`
	Keyterms       []string                   `json:"keyterms,omitempty"`
	Keywords       []string                   `json:"keywords,omitempty"`
	Model          string                     `json:"model,omitempty"`
	Redact         []string                   `json:"redact,omitempty"`
	Replace        []string                   `json:"replace,omitempty"`
	Extra          map[string]json.RawMessage `json:"extra,omitempty"`
}

// UsesStreaming reports whether a callback URL was supplied, the signal the
// upstream system uses to decide between streaming and batch transcription.
func (s *DeepgramSettings) UsesStreaming() bool {
	return s != nil && s.Callback != ""
}

// ResolvedModel returns Model if set, else "nova-3", falling back to
// "nova-2" for languages nova-3 doesn't yet support.
func (s *DeepgramSettings) ResolvedModel() string {
	if s != nil && s.Model != "" {
		return s.Model
	}
	var language string
	if s != nil {
		language = s.Language
	}
	if nova2OnlyLanguages[language] {
		return "nova-2"
	}
	return "nova-3"
}

type GladiaSettings struct {
	Language                string                     `json:"language,omitempty"`
	EnableCodeSwitching     bool                       `json:"enable_code_switching,omitempty"`
	CodeSwitchingLanguages  []string                   `json:"code_switching_languages,omitempty"`
	Extra                   map[string]json.RawMessage `json:"extra,omitempty"`
}

type SarvamSettings struct {
	LanguageCode string                     `json:"language_code,omitempty"`
	Model        string                     `json:"model,omitempty"`
	Extra        map[string]json.RawMessage `json:"extra,omitempty"`
}

// DefaultElevenLabsModelID is used when a job's settings don't name one.
const DefaultElevenLabsModelID = "scribe_v1"

type ElevenLabsSettings struct {
	ModelID        string                     `json:"model_id,omitempty"`
	LanguageCode   string                     `json:"language_code,omitempty"`
	TagAudioEvents bool                       `json:"tag_audio_events,omitempty"`
	Extra          map[string]json.RawMessage `json:"extra,omitempty"`
}

// ResolvedModelID returns ModelID if set, else DefaultElevenLabsModelID.
func (s *ElevenLabsSettings) ResolvedModelID() string {
	if s == nil || s.ModelID == "" {
		return DefaultElevenLabsModelID
	}
	return s.ModelID
}

type KyutaiSettings struct {
	ServerURL string                     `json:"server_url,omitempty"`
	Extra     map[string]json.RawMessage `json:"extra,omitempty"`
}

// ClosedCaptionSettings configures pulling captions straight from the
// meeting platform instead of running audio through a transcription vendor.
// Each platform carries its own language override since a bot's meeting
// platform is fixed for its lifetime but the setting is still namespaced
// per-platform to match how it's authored.
type ClosedCaptionSettings struct {
	GoogleMeetLanguage        string                     `json:"google_meet_language,omitempty"`
	TeamsLanguage             string                     `json:"teams_language,omitempty"`
	ZoomLanguage              string                     `json:"zoom_language,omitempty"`
	MergeConsecutiveCaptions  bool                       `json:"merge_consecutive_captions,omitempty"`
	Extra                     map[string]json.RawMessage `json:"extra,omitempty"`
}
