package user

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func sectionTitles(menu SettingsMenu) []string {
	titles := make([]string, 0, len(menu.Sections))
	for _, s := range menu.Sections {
		titles = append(titles, s.Title)
	}
	return titles
}

func linkTitles(section SettingsSection) []string {
	titles := make([]string, 0, len(section.Links))
	for _, l := range section.Links {
		titles = append(titles, l.Title)
	}
	return titles
}

func TestNewSettingsMenu(t *testing.T) {
	tests := []struct {
		name         string
		role         Role
		isHod        bool
		wantSections []string
		wantRoleMenu []string
	}{
		{
			name:         "student",
			role:         RoleStudent,
			wantSections: []string{"STUDENT Menu", "General"},
			wantRoleMenu: []string{"Bunk Calculator", "Leave Requests"},
		},
		{
			name:         "teacher",
			role:         RoleTeacher,
			wantSections: []string{"TEACHER Menu", "General"},
			wantRoleMenu: []string{"Delegation Settings"},
		},
		{
			name:         "hod",
			role:         RoleTeacher,
			isHod:        true,
			wantSections: []string{"Teacher & HOD Menu", "General"},
			wantRoleMenu: []string{"Delegation Settings", "Department Configuration"},
		},
		{
			name:         "admin",
			role:         RoleAdmin,
			wantSections: []string{"ADMIN Menu", "Dev tool", "General"},
			wantRoleMenu: []string{"Admins", "Teachers", "Students", "Class & Routine", "Subjects", "Holidays"},
		},
		{
			name:         "hod flag ignored for admins",
			role:         RoleAdmin,
			isHod:        true,
			wantSections: []string{"ADMIN Menu", "Dev tool", "General"},
			wantRoleMenu: []string{"Admins", "Teachers", "Students", "Class & Routine", "Subjects", "Holidays"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			menu := NewSettingsMenu(tt.role, tt.isHod)
			assert.Equal(t, tt.wantSections, sectionTitles(menu))
			assert.Equal(t, tt.wantRoleMenu, linkTitles(menu.Sections[0]))

			general := menu.Sections[len(menu.Sections)-1]
			assert.Equal(t, []string{"Profile", "Security", "Notifications"}, linkTitles(general))
		})
	}
}

func TestNewSettingsMenu_devToolsAreDangerous(t *testing.T) {
	menu := NewSettingsMenu(RoleAdmin, false)
	for _, l := range menu.Sections[1].Links {
		assert.True(t, l.Danger, l.Title)
	}
}

func TestNewSettingsMenu_linksAreCopies(t *testing.T) {
	menu := NewSettingsMenu(RoleStudent, false)
	menu.Sections[0].Links[0].Title = "changed"
	assert.Equal(t, "Bunk Calculator", NewSettingsMenu(RoleStudent, false).Sections[0].Links[0].Title)
}

func TestParseRole(t *testing.T) {
	tests := []struct {
		in      string
		want    Role
		wantErr bool
	}{
		{"ADMIN", RoleAdmin, false},
		{" teacher ", RoleTeacher, false},
		{"Student", RoleStudent, false},
		{"HOD", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRole(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantErr, err != nil)
		})
	}
}
