package game

// SettingsPatch is a partial settings update. Pointer fields
// distinguish "absent" from the zero value.
type SettingsPatch struct {
	TopicMode    *TopicMode    `json:"topicMode"`
	WinCondition *WinCondition `json:"winCondition"`
	MaxRounds    *int          `json:"maxRounds"`
}

// applySettingsPatch merges a patch into the current settings. Fields
// with an unknown shape or an out-of-range value are dropped silently;
// the patch never fails as a whole. MaxRounds of 0 clears the limit.
func applySettingsPatch(cur RoomSettings, p SettingsPatch) RoomSettings {
	out := cur
	if p.TopicMode != nil {
		if m := *p.TopicMode; m == TopicModeGM || m == TopicModeAll {
			out.TopicMode = m
		}
	}
	if p.WinCondition != nil {
		switch wc := *p.WinCondition; wc.Type {
		case WinNone:
			out.WinCondition = WinCondition{Type: WinNone}
		case WinCount, WinConsecutive:
			if wc.Value >= 1 {
				out.WinCondition = WinCondition{Type: wc.Type, Value: wc.Value}
			}
		}
	}
	if p.MaxRounds != nil {
		switch mr := *p.MaxRounds; {
		case mr == 0:
			out.MaxRounds = 0
		case mr >= 1 && mr <= 100:
			out.MaxRounds = mr
		}
	}
	return out
}
