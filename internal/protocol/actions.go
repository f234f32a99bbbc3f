package protocol

// Action types.
const (
	ActCreateWorld    = "CREATE_WORLD"
	ActSetActiveWorld = "SET_ACTIVE_WORLD"
	ActRenameRegion   = "RENAME_REGION"
	ActPlaceCharacter = "PLACE_CHARACTER"
	ActAddNPC         = "ADD_NPC"
	ActAddQuest       = "ADD_QUEST"
	ActSetCapital     = "SET_CAPITAL"
	ActAddTrait       = "ADD_TRAIT"
	ActSuggestNPC     = "SUGGEST_NPC"
	ActSuggestQuest   = "SUGGEST_QUEST"
	ActRefreshLore    = "REFRESH_LORE"
	ActJournal        = "JOURNAL"
	ActForgeCharacter = "FORGE_CHARACTER"
	ActAdvanceTime    = "ADVANCE_TIME"
	ActContinueStory  = "CONTINUE_STORY"
	ActApplyChoice    = "APPLY_CHOICE"
	ActAddNote        = "ADD_NOTE"
	ActStoryState     = "STORY_STATE"
	ActExport         = "EXPORT"
)

// Action is the union of every action's parameters; each type reads only
// the fields it needs.
type Action struct {
	Type string `json:"type"`

	World  string `json:"world,omitempty"`
	Region string `json:"region,omitempty"`

	Name        string `json:"name,omitempty"`
	Gender      string `json:"gender,omitempty"`
	Race        string `json:"race,omitempty"`
	Class       string `json:"class,omitempty"`
	Role        string `json:"role,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Trait       string `json:"trait,omitempty"`
	Capital     *bool  `json:"capital,omitempty"`
	CharacterID string `json:"character_id,omitempty"`

	Days   int    `json:"days,omitempty"`
	Option string `json:"option,omitempty"`
	Text   string `json:"text,omitempty"`
}

var knownActions = map[string]struct{}{
	ActCreateWorld:    {},
	ActSetActiveWorld: {},
	ActRenameRegion:   {},
	ActPlaceCharacter: {},
	ActAddNPC:         {},
	ActAddQuest:       {},
	ActSetCapital:     {},
	ActAddTrait:       {},
	ActSuggestNPC:     {},
	ActSuggestQuest:   {},
	ActRefreshLore:    {},
	ActJournal:        {},
	ActForgeCharacter: {},
	ActAdvanceTime:    {},
	ActContinueStory:  {},
	ActApplyChoice:    {},
	ActAddNote:        {},
	ActStoryState:     {},
	ActExport:         {},
}

func IsKnownAction(t string) bool {
	_, ok := knownActions[t]
	return ok
}
