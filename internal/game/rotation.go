package game

// nextSetter picks the topic setter for the round about to be created.
// In "gm" mode the GM always sets. In "all" mode the user list rotates
// (GM included) by the number of rounds already created, so the choice
// is replayable from round history and membership order alone.
func nextSetter(r *Room) string {
	switch r.Settings.TopicMode {
	case TopicModeGM:
		if gm := r.gm(); gm != nil {
			return gm.ID
		}
		return ""
	case TopicModeAll:
		if len(r.Users) == 0 {
			return ""
		}
		return r.Users[len(r.Rounds)%len(r.Users)].ID
	}
	return ""
}
