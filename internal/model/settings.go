package model

// Settings keeps the user's app preferences.
type Settings struct {
	Notifications bool `json:"notifications"`
	DailyReminder bool `json:"dailyReminder"`
	DarkMode      bool `json:"darkMode"`
}

// SettingsPatch carries the flags to change; nil fields are left as is.
type SettingsPatch struct {
	Notifications *bool
	DailyReminder *bool
	DarkMode      *bool
}

// Apply returns s with the patch merged in.
func (p SettingsPatch) Apply(s Settings) Settings {
	if p.Notifications != nil {
		s.Notifications = *p.Notifications
	}
	if p.DailyReminder != nil {
		s.DailyReminder = *p.DailyReminder
	}
	if p.DarkMode != nil {
		s.DarkMode = *p.DarkMode
	}
	return s
}

func (p SettingsPatch) Empty() bool {
	return p.Notifications == nil && p.DailyReminder == nil && p.DarkMode == nil
}
