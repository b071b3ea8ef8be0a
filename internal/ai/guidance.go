// Package ai produces emergency safety guidance with Gemini.
package ai

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/thebtf/inkingi-ussd/pkg/models"
	"google.golang.org/genai"
)

//go:embed instructions.txt
var defaultInstructions string

// MaxGuidanceLen is the longest guidance shown on a USSD screen.
const MaxGuidanceLen = 600

// DefaultTimeout bounds a single generation call.
const DefaultTimeout = 15 * time.Second

// Generator produces text for a prompt under system instructions.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// Result is the outcome of a guidance request. Guidance is always usable.
type Result struct {
	Guidance string
	Success  bool
}

// Service builds prompts, calls the generator and formats the answer.
type Service struct {
	gen          Generator
	instructions string
	timeout      time.Duration
}

// NewService creates a guidance service. A nil generator always serves the
// built-in guidance.
func NewService(gen Generator, instructions string) *Service {
	if strings.TrimSpace(instructions) == "" {
		instructions = defaultInstructions
	}
	return &Service{gen: gen, instructions: instructions, timeout: DefaultTimeout}
}

// LoadInstructions reads a system-instructions override file. An empty path
// returns the embedded instructions.
func LoadInstructions(path string) (string, error) {
	if path == "" {
		return defaultInstructions, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read ai instructions: %w", err)
	}
	return string(data), nil
}

// GetGuidance returns guidance for an emergency type, or for question when it
// is non-empty. Failures fall back to DefaultGuidance.
func (s *Service) GetGuidance(ctx context.Context, emergencyType models.EmergencyType, question, locale string) Result {
	fallback := Result{Guidance: DefaultGuidance(emergencyType, locale)}
	if s.gen == nil {
		return fallback
	}

	var prompt string
	if q := strings.TrimSpace(question); q != "" {
		prompt = CustomPrompt(q, locale)
	} else {
		prompt = EmergencyPrompt(emergencyType, locale)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	text, err := s.gen.Generate(ctx, s.instructions, prompt)
	if err != nil {
		log.Warn().Err(err).Str("type", string(emergencyType)).Str("locale", locale).Msg("AI guidance failed, using default")
		return fallback
	}
	formatted := FormatForUSSD(text)
	if formatted == "" {
		log.Warn().Str("type", string(emergencyType)).Msg("AI guidance empty, using default")
		return fallback
	}
	return Result{Guidance: formatted, Success: true}
}

var languageInstructions = map[string]string{
	"en": "Respond in English.",
	"rw": "Respond in Kinyarwanda (Rwanda's native language).",
	"fr": "Respond in French.",
	"sw": "Respond in Swahili.",
}

// LanguageInstruction tells the model which language to answer in.
func LanguageInstruction(locale string) string {
	if s, ok := languageInstructions[locale]; ok {
		return s
	}
	return languageInstructions["en"]
}

var emergencyPrompts = map[models.EmergencyType]string{
	models.EmergencyFire:     "A person is experiencing a FIRE emergency right now. Provide immediate, life-saving guidance (max 300 characters). Follow the FIRE EMERGENCIES section in your instructions.",
	models.EmergencyMedical:  "A person is experiencing a MEDICAL emergency right now. Provide immediate, life-saving first aid guidance (max 300 characters). Follow the MEDICAL EMERGENCIES section in your instructions.",
	models.EmergencyAccident: "A person is at an ACCIDENT scene right now. Provide immediate guidance (max 300 characters). Follow the ACCIDENTS section in your instructions.",
	models.EmergencyCrime:    "A person is experiencing a CRIME/SAFETY emergency right now. Provide immediate safety guidance (max 300 characters). Follow the CRIME/SAFETY section in your instructions.",
	models.EmergencyOther:    "A person is experiencing an emergency right now. Provide general emergency guidance (max 300 characters). Follow your core responsibilities.",
}

// EmergencyPrompt builds the prompt for a standard emergency type.
func EmergencyPrompt(t models.EmergencyType, locale string) string {
	p, ok := emergencyPrompts[t]
	if !ok {
		p = emergencyPrompts[models.EmergencyOther]
	}
	return LanguageInstruction(locale) + " " + p
}

// CustomPrompt builds the prompt for a free-text question.
func CustomPrompt(question, locale string) string {
	return fmt.Sprintf("%s A person in Rwanda needs emergency assistance. Their question: \"%s\". "+
		"Provide brief (max 300 characters), actionable, life-saving guidance. "+
		"Follow your core responsibilities and emergency-specific guidance as applicable.",
		LanguageInstruction(locale), question)
}

var (
	markdownChars = regexp.MustCompile(`[*_#]`)
	whitespace    = regexp.MustCompile(`\s+`)
)

// FormatForUSSD strips markdown, collapses whitespace and caps the length.
func FormatForUSSD(text string) string {
	out := markdownChars.ReplaceAllString(text, "")
	out = strings.TrimSpace(whitespace.ReplaceAllString(out, " "))
	if r := []rune(out); len(r) > MaxGuidanceLen {
		out = string(r[:MaxGuidanceLen-3]) + "..."
	}
	return out
}

var defaultGuidance = map[string]map[models.EmergencyType]string{
	"en": {
		models.EmergencyFire:     "FIRE: Get out immediately. Stay low. Don't use elevators. Call 111. Don't go back inside.",
		models.EmergencyMedical:  "MEDICAL: Call 912. Keep person calm. Don't move if injured. Apply pressure to bleeding. Monitor breathing.",
		models.EmergencyAccident: "ACCIDENT: Call 112. Don't move injured. Secure scene. Check breathing. Apply pressure to bleeding.",
		models.EmergencyCrime:    "CRIME: Get to safety first. Call 112. Remember details. Don't confront. Find witnesses.",
		models.EmergencyOther:    "EMERGENCY: Stay calm. Call appropriate emergency number. Follow operator instructions. Stay safe.",
	},
	"rw": {
		models.EmergencyFire:     "UMURIRO: Sohoka ako kanya. Kora hasi. Ntukoreshe lift. Hamagara 111. Ntugaruke imbere.",
		models.EmergencyMedical:  "UBUVUZI: Hamagara 912. Humuriza umuntu. Ntumukingure niba yakomeretse. Kanda aho ahumanya amaraso.",
		models.EmergencyAccident: "IMPANUKA: Hamagara 112. Ntukingure abakomeretse. Tegura ahantu. Reba uburyo bahumeka.",
		models.EmergencyCrime:    "ICYAHA: Irinda ubuzima bwawe. Hamagara 112. Wibuke ibisobanuro. Ntukongere.",
		models.EmergencyOther:    "IKIBABAJE: Komera. Hamagara nimero ikwiye. Kurikiza inama. Witondere.",
	},
	"fr": {
		models.EmergencyFire:     "FEU: Sortez immédiatement. Restez bas. N'utilisez pas l'ascenseur. Appelez 111.",
		models.EmergencyMedical:  "MÉDICAL: Appelez 912. Gardez la personne calme. Ne bougez pas si blessé. Appliquez pression sur saignement.",
		models.EmergencyAccident: "ACCIDENT: Appelez 112. Ne déplacez pas blessés. Sécurisez zone. Vérifiez respiration.",
		models.EmergencyCrime:    "CRIME: Mettez-vous en sécurité. Appelez 112. Mémorisez détails. Ne confrontez pas.",
		models.EmergencyOther:    "URGENCE: Restez calme. Appelez numéro approprié. Suivez instructions. Restez en sécurité.",
	},
	"sw": {
		models.EmergencyFire:     "MOTO: Toka haraka. Kaa chini. Usitumie lifti. Piga 111. Usirudi ndani.",
		models.EmergencyMedical:  "MATIBABU: Piga 912. Tuliza mtu. Usisogeze ikiwa amejeruhiwa. Bana mahali pa damu.",
		models.EmergencyAccident: "AJALI: Piga 112. Usisogeze waliojeruhiwa. Linda eneo. Angalia kupumua.",
		models.EmergencyCrime:    "UHALIFU: Jilinde kwanza. Piga 112. Kumbuka maelezo. Usipingane.",
		models.EmergencyOther:    "DHARURA: Tulia. Piga nambari sahihi. Fuata maelekezo. Kaa salama.",
	},
}

// DefaultGuidance returns the built-in guidance for a type and locale.
// Unknown locales use English and unknown types use the general guidance.
func DefaultGuidance(t models.EmergencyType, locale string) string {
	byType, ok := defaultGuidance[locale]
	if !ok {
		byType = defaultGuidance["en"]
	}
	if g, ok := byType[t]; ok {
		return g
	}
	return byType[models.EmergencyOther]
}

// Gemini generates text with the Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini generator.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = "gemini-flash-lite-latest"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &Gemini{client: client, model: model}, nil
}

// Generate implements Generator.
func (g *Gemini) Generate(ctx context.Context, system, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
	})
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return resp.Text(), nil
}
