package menu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/thebtf/inkingi-ussd/internal/i18n"
)

// MenuSuite is a test suite for the default catalog.
type MenuSuite struct {
	suite.Suite
	catalog *Catalog
}

func (s *MenuSuite) SetupSuite() {
	tr, err := i18n.New("")
	s.Require().NoError(err)
	s.catalog = Default(tr)
}

func TestMenuSuite(t *testing.T) {
	suite.Run(t, new(MenuSuite))
}

// TestResolve_Welcome tests the rendered first-contact prompt.
func (s *MenuSuite) TestResolve_Welcome() {
	g := s.catalog.Resolve("en")
	s.Equal("Welcome to INKINGI Rescue\nChoose language to continue\n1. English\n2. Ikinyarwanda\n3. Français\n4. Kiswahili",
		g.Prompt(Welcome))
}

// TestResolve_Localized tests that structure is shared and text follows the locale.
func (s *MenuSuite) TestResolve_Localized() {
	en := s.catalog.Resolve("en")
	rw := s.catalog.Resolve("rw")

	s.Contains(en.Prompt(Main), "1. Emergencies")
	s.Contains(rw.Prompt(Main), "1. Ibyihutirwa")
	s.Equal("rw", rw.Locale)

	enMain, _ := en.Screen(Main)
	rwMain, _ := rw.Screen(Main)
	s.Same(enMain, rwMain)
}

// TestResolve_UnknownLocale tests fallback to the default locale.
func (s *MenuSuite) TestResolve_UnknownLocale() {
	g := s.catalog.Resolve("xx")
	s.Equal("en", g.Locale)
	s.Equal(s.catalog.Resolve("en").Prompt(Main), g.Prompt(Main))
}

// TestResolve_Hotlines tests option params interpolation.
func (s *MenuSuite) TestResolve_Hotlines() {
	p := s.catalog.Resolve("en").Prompt(Hotlines)
	s.Contains(p, "1. Police - 112")
	s.Contains(p, "2. Fire - 113")
	s.Contains(p, "3. Ambulance - 114")
	s.Contains(p, "0. Go back")
}

// TestDataScreensHaveNoStaticPrompt tests that data-driven screens are rendered elsewhere.
func (s *MenuSuite) TestDataScreensHaveNoStaticPrompt() {
	g := s.catalog.Resolve("en")
	for _, name := range []string{ViewEmergencies, MyEmergencies, News, Events} {
		scr, ok := g.Screen(name)
		s.Require().True(ok, name)
		s.True(scr.DataDriven())
		s.Empty(g.Prompt(name))
	}
}

// TestFreeTextScreens tests the continue targets of prose screens.
func (s *MenuSuite) TestFreeTextScreens() {
	info, _ := s.catalog.Screen(AdditionalInfo)
	s.True(info.AcceptsFreeText())
	s.Equal(Goto(ConfirmEmergency), *info.Continue)

	custom, _ := s.catalog.Screen(CustomAIRequest)
	s.True(custom.AcceptsFreeText())
	s.Equal(Invoke(ActionCustomAI), *custom.Continue)

	main, _ := s.catalog.Screen(Main)
	s.False(main.AcceptsFreeText())
}

// TestLookup tests keystroke resolution.
func (s *MenuSuite) TestLookup() {
	tests := []struct {
		screen string
		key    string
		want   Target
		found  bool
	}{
		{screen: Welcome, key: "2", want: SetLanguage("rw"), found: true},
		{screen: Main, key: "4", want: Goto(Distress), found: true},
		{screen: Emergencies, key: "1", want: GotoData(ViewEmergencies), found: true},
		{screen: Distress, key: "1", want: Invoke(ActionConfirmDistress), found: true},
		{screen: Languages, key: "0", want: Goto(Main), found: true},
		{screen: Main, key: "9", found: false},
		{screen: Main, key: "", found: false},
	}
	for _, tt := range tests {
		s.Run(tt.screen+"/"+tt.key, func() {
			scr, ok := s.catalog.Screen(tt.screen)
			s.Require().True(ok)
			got, found := scr.Lookup(tt.key)
			s.Equal(tt.found, found)
			if tt.found {
				s.Equal(tt.want, got)
			}
		})
	}
}

type keyTranslator struct{}

func (keyTranslator) T(key string, _ i18n.Params, _ string) string { return key }

func TestNewCatalog_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		screens []*Screen
	}{
		{
			name:    "missing entry",
			screens: []*Screen{{Name: "main"}},
		},
		{
			name: "unknown target",
			screens: []*Screen{
				{Name: "welcome", Options: []Option{{Key: "1", Target: Goto("nowhere")}}},
				{Name: "main"},
			},
		},
		{
			name: "data target on static screen",
			screens: []*Screen{
				{Name: "welcome", Options: []Option{{Key: "1", Target: GotoData("main")}}},
				{Name: "main"},
			},
		},
		{
			name: "unsupported locale",
			screens: []*Screen{
				{Name: "welcome", Options: []Option{{Key: "1", Target: SetLanguage("de")}}},
				{Name: "main"},
			},
		},
		{
			name: "duplicate",
			screens: []*Screen{
				{Name: "welcome"}, {Name: "main"}, {Name: "main"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCatalog(keyTranslator{}, "welcome", "main", tt.screens)
			assert.Error(t, err)
		})
	}
}

func TestTargetString(t *testing.T) {
	assert.Equal(t, "screen:main", Goto("main").String())
	assert.Equal(t, "data:news", GotoData("news").String())
	assert.Equal(t, "language:rw", SetLanguage("rw").String())
	assert.Equal(t, "action:submitEmergency", Invoke(ActionSubmitEmergency).String())
}

func TestDefault_Valid(t *testing.T) {
	require.NotPanics(t, func() { Default(keyTranslator{}) })
}
