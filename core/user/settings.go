package user

type (
	SettingsLink struct {
		Title  string `json:"title"`
		Href   string `json:"href"`
		Danger bool   `json:"danger,omitempty"`
	}

	SettingsSection struct {
		Title string         `json:"title"`
		Links []SettingsLink `json:"links"`
	}

	SettingsMenu struct {
		Sections []SettingsSection `json:"sections"`
	}
)

var (
	commonLinks = []SettingsLink{
		{Title: "Profile", Href: "/settings/profile"},
		{Title: "Security", Href: "/settings/security"},
		{Title: "Notifications", Href: "/settings/notifications"},
	}

	devToolLinks = []SettingsLink{
		{Title: "Force Update", Href: "/settings/force-update", Danger: true},
		{Title: "Broadcast Message", Href: "/settings/broadcast", Danger: true},
		{Title: "Maintenance Mode", Href: "/settings/maintenance", Danger: true},
	}

	studentLinks = []SettingsLink{
		{Title: "Bunk Calculator", Href: "/settings/bunk-calculator"},
		{Title: "Leave Requests", Href: "/settings/leaves"},
	}

	adminLinks = []SettingsLink{
		{Title: "Admins", Href: "/users/admins"},
		{Title: "Teachers", Href: "/users/teachers"},
		{Title: "Students", Href: "/users/students"},
		{Title: "Class & Routine", Href: "/settings/class-routine"},
		{Title: "Subjects", Href: "/settings/subjects"},
		{Title: "Holidays", Href: "/settings/holidays"},
	}
)

// NewSettingsMenu returns the settings navigation of a user holding role.
// Sections come in display order: role menu, developer tools (admins only), general.
func NewSettingsMenu(role Role, isHod bool) SettingsMenu {
	var (
		roleTitle = role.String() + " Menu"
		roleLinks []SettingsLink
	)

	switch role {
	case RoleStudent:
		roleLinks = studentLinks
	case RoleTeacher:
		roleLinks = []SettingsLink{{Title: "Delegation Settings", Href: "/settings/delegation"}}
		if isHod {
			roleTitle = "Teacher & HOD Menu"
			roleLinks = append(roleLinks, SettingsLink{Title: "Department Configuration", Href: "/settings/department"})
		}
	case RoleAdmin:
		roleLinks = adminLinks
	}

	menu := SettingsMenu{Sections: make([]SettingsSection, 0, 3)}
	if len(roleLinks) > 0 {
		menu.Sections = append(menu.Sections, SettingsSection{Title: roleTitle, Links: copyLinks(roleLinks)})
	}
	if role == RoleAdmin {
		menu.Sections = append(menu.Sections, SettingsSection{Title: "Dev tool", Links: copyLinks(devToolLinks)})
	}
	menu.Sections = append(menu.Sections, SettingsSection{Title: "General", Links: copyLinks(commonLinks)})
	return menu
}

func copyLinks(links []SettingsLink) []SettingsLink {
	cp := make([]SettingsLink, len(links))
	copy(cp, links)
	return cp
}
