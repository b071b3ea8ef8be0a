package menu

import (
	"github.com/thebtf/inkingi-ussd/internal/i18n"
	"github.com/thebtf/inkingi-ussd/pkg/models"
)

// Screen names of the default graph.
const (
	Welcome          = "welcome"
	Main             = "main"
	Emergencies      = "emergencies"
	CommunityPosts   = "communityPosts"
	Hotlines         = "hotlines"
	Distress         = "distress"
	Settings         = "settings"
	Languages        = "languages"
	Terms            = "terms"
	Privacy          = "privacy"
	ReportEmergency  = "reportEmergency"
	AdditionalInfo   = "additionalInfo"
	ConfirmEmergency = "confirmEmergency"
	AIAssistance     = "aiAssistance"
	CustomAIRequest  = "customAIRequest"
	ViewEmergencies  = "viewEmergencies"
	MyEmergencies    = "myEmergencies"
	News             = "news"
	Events           = "events"
)

// Hotline numbers shown on the hotlines screen.
const (
	HotlinePolice    = "112"
	HotlineFire      = "113"
	HotlineAmbulance = "114"
)

func back(to string) Option {
	return Option{Key: "0", LabelKey: "common.go_back", Target: Goto(to)}
}

func languageOptions() []Option {
	return []Option{
		{Key: "1", LabelKey: "language.en", Target: SetLanguage("en")},
		{Key: "2", LabelKey: "language.rw", Target: SetLanguage("rw")},
		{Key: "3", LabelKey: "language.fr", Target: SetLanguage("fr")},
		{Key: "4", LabelKey: "language.sw", Target: SetLanguage("sw")},
	}
}

// DefaultScreens returns the INKINGI Rescue menu graph.
func DefaultScreens() []*Screen {
	continueToConfirm := Goto(ConfirmEmergency)
	askCustom := Invoke(ActionCustomAI)

	return []*Screen{
		{
			Name:     Welcome,
			TitleKey: "welcome.title",
			BodyKey:  "welcome.choose_language",
			Options:  languageOptions(),
		},
		{
			Name:     Main,
			TitleKey: "main.title",
			Options: []Option{
				{Key: "1", LabelKey: "main.emergencies", Target: Goto(Emergencies)},
				{Key: "2", LabelKey: "main.community_posts", Target: Goto(CommunityPosts)},
				{Key: "3", LabelKey: "main.hotlines", Target: Goto(Hotlines)},
				{Key: "4", LabelKey: "main.distress", Target: Goto(Distress)},
				{Key: "5", LabelKey: "main.settings", Target: Goto(Settings)},
				{Key: "6", LabelKey: "main.ai_assistance", Target: Goto(AIAssistance)},
			},
		},
		{
			Name:     Emergencies,
			TitleKey: "emergencies.title",
			Options: []Option{
				{Key: "1", LabelKey: "emergencies.view", Target: GotoData(ViewEmergencies)},
				{Key: "2", LabelKey: "emergencies.report", Target: Goto(ReportEmergency)},
				{Key: "3", LabelKey: "emergencies.mine", Target: GotoData(MyEmergencies)},
				back(Main),
			},
		},
		{
			Name:     CommunityPosts,
			TitleKey: "community.title",
			Options: []Option{
				{Key: "1", LabelKey: "community.news", Target: GotoData(News)},
				{Key: "2", LabelKey: "community.events", Target: GotoData(Events)},
				back(Main),
			},
		},
		{
			Name:     Hotlines,
			TitleKey: "hotlines.title",
			Options: []Option{
				{Key: "1", LabelKey: "hotlines.police", Params: i18n.Params{"number": HotlinePolice}, Target: Goto(Main)},
				{Key: "2", LabelKey: "hotlines.fire", Params: i18n.Params{"number": HotlineFire}, Target: Goto(Main)},
				{Key: "3", LabelKey: "hotlines.ambulance", Params: i18n.Params{"number": HotlineAmbulance}, Target: Goto(Main)},
				back(Main),
			},
		},
		{
			Name:     Distress,
			TitleKey: "distress.prompt",
			Options: []Option{
				{Key: "1", LabelKey: "common.confirm", Target: Invoke(ActionConfirmDistress)},
				{Key: "0", LabelKey: "common.cancel", Target: Goto(Main)},
			},
		},
		{
			Name:     Settings,
			TitleKey: "settings.title",
			Options: []Option{
				{Key: "1", LabelKey: "settings.change_language", Target: Goto(Languages)},
				{Key: "2", LabelKey: "settings.terms", Target: Goto(Terms)},
				{Key: "3", LabelKey: "settings.privacy", Target: Goto(Privacy)},
				back(Main),
			},
		},
		{
			Name:     Languages,
			TitleKey: "languages.title",
			Options:  append(languageOptions(), back(Main)),
		},
		{
			Name:     Terms,
			TitleKey: "terms.title",
			BodyKey:  "terms.body",
			Options:  []Option{back(Main)},
		},
		{
			Name:     Privacy,
			TitleKey: "privacy.title",
			BodyKey:  "privacy.body",
			Options:  []Option{back(Main)},
		},
		{
			Name:     ReportEmergency,
			TitleKey: "report.title",
			Options: []Option{
				{Key: "1", LabelKey: "report.types.fire", Target: Goto(AdditionalInfo)},
				{Key: "2", LabelKey: "report.types.medical", Target: Goto(AdditionalInfo)},
				{Key: "3", LabelKey: "report.types.assault", Target: Goto(AdditionalInfo)},
				{Key: "4", LabelKey: "report.types.corruption", Target: Goto(AdditionalInfo)},
				{Key: "5", LabelKey: "report.types.accident", Target: Goto(AdditionalInfo)},
				{Key: "6", LabelKey: "report.types.other", Target: Goto(AdditionalInfo)},
				back(Emergencies),
			},
		},
		{
			Name:     AdditionalInfo,
			TitleKey: "additional_info.prompt",
			Continue: &continueToConfirm,
			Options: []Option{
				{Key: "1", LabelKey: "common.continue", Target: Goto(ConfirmEmergency)},
				back(ReportEmergency),
			},
		},
		{
			Name:     ConfirmEmergency,
			TitleKey: "confirm_emergency.prompt",
			Options: []Option{
				{Key: "1", LabelKey: "common.confirm", Target: Invoke(ActionSubmitEmergency)},
				{Key: "0", LabelKey: "common.cancel", Target: Goto(Emergencies)},
			},
		},
		{
			Name:     AIAssistance,
			TitleKey: "ai_assistance.title",
			Options: []Option{
				{Key: "1", LabelKey: "ai_assistance.fire", Target: Invoke(ActionAIGuidance)},
				{Key: "2", LabelKey: "ai_assistance.medical", Target: Invoke(ActionAIGuidance)},
				{Key: "3", LabelKey: "ai_assistance.accident", Target: Invoke(ActionAIGuidance)},
				{Key: "4", LabelKey: "ai_assistance.crime", Target: Invoke(ActionAIGuidance)},
				{Key: "5", LabelKey: "ai_assistance.custom", Target: Goto(CustomAIRequest)},
				back(Main),
			},
		},
		{
			Name:     CustomAIRequest,
			TitleKey: "ai_assistance.custom_prompt",
			Continue: &askCustom,
			Options:  []Option{back(AIAssistance)},
		},
		{Name: ViewEmergencies, List: models.ListEmergencies, Back: Emergencies},
		{Name: MyEmergencies, List: models.ListEmergencies, Back: Emergencies},
		{Name: News, List: models.ListPosts, Back: CommunityPosts},
		{Name: Events, List: models.ListEvents, Back: CommunityPosts},
	}
}

// Default builds the catalog of the INKINGI Rescue menu graph.
func Default(tr Translator) *Catalog {
	c, err := NewCatalog(tr, Welcome, Main, DefaultScreens())
	if err != nil {
		panic("menu: invalid default graph: " + err.Error())
	}
	return c
}
