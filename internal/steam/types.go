package steam

// Persona states reported by GetPlayerSummaries.
const (
	StatusOffline = "offline"
	StatusOnline  = "online"
	StatusBusy    = "busy"
	StatusAway    = "away"
	StatusSnooze  = "snooze"
	StatusInGame  = "ingame"
	StatusUnknown = "unknown"
)

var personaStates = map[int]string{
	0: StatusOffline,
	1: StatusOnline,
	2: StatusBusy,
	3: StatusAway,
	4: StatusSnooze,
}

// PlayerStatus is the reshaped presence of one player.
type PlayerStatus struct {
	Status string `json:"status"`
	Game   string `json:"game,omitempty"`
	GameID string `json:"gameId,omitempty"`
}

// PlayerProfile holds the summary fields the login flow keeps.
type PlayerProfile struct {
	SteamID    string `json:"steamid"`
	Name       string `json:"personaname"`
	ProfileURL string `json:"profileurl"`
	Avatar     string `json:"avatarfull"`
}

type playerPresence struct {
	PersonaState  int     `json:"personastate"`
	GameExtraInfo *string `json:"gameextrainfo"`
	GameID        *string `json:"gameid"`
}

// StatusFromPersonaState maps an upstream persona state code to its name.
func StatusFromPersonaState(state int) string {
	if s, ok := personaStates[state]; ok {
		return s
	}
	return StatusUnknown
}

func (p playerPresence) status() PlayerStatus {
	if p.GameExtraInfo != nil && p.GameID != nil {
		return PlayerStatus{Status: StatusInGame, Game: *p.GameExtraInfo, GameID: *p.GameID}
	}
	return PlayerStatus{Status: StatusFromPersonaState(p.PersonaState)}
}
