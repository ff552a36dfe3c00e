package access

// Roles
const (
	RoleAdmin   = "admin"
	RoleStaff   = "staff"
	RoleStudent = "student"
)

// Resource is a navigable domain entity of the console with its route set.
type Resource struct {
	Name       string `json:"name"`
	Label      string `json:"label"`
	ListPath   string `json:"listPath"`
	ShowPath   string `json:"showPath,omitempty"`
	CreatePath string `json:"createPath,omitempty"`
	EditPath   string `json:"editPath,omitempty"`

	// AdminOnly hides the resource from staff, unless StaffCarveOut
	// re-includes it. Common resources are visible to every role;
	// SelfService ones are the student-facing subset.
	AdminOnly     bool `json:"-"`
	StaffCarveOut bool `json:"-"`
	Common        bool `json:"-"`
	SelfService   bool `json:"-"`
}

// Catalog is the static resource catalog of the console. It is fixed for the
// process lifetime; role-based filtering happens in VisibleResources.
var Catalog = []Resource{
	{
		Name:     "dashboard",
		Label:    "Dashboard",
		ListPath: "/",
		Common:   true,
	},
	{
		Name:       "courseManagement",
		Label:      "Course Management",
		ListPath:   "/courseManagement",
		ShowPath:   "/courseManagement/view/:courseId",
		CreatePath: "/courseManagement/new",
		EditPath:   "/courseManagement/edit/:courseId",
	},
	{
		Name:       "classScheduling",
		Label:      "Class Scheduling",
		CreatePath: "/classScheduling/new",
		EditPath:   "/classScheduling/edit/:classId",
	},
	{
		Name:       "courseRegistration",
		Label:      "Course Registration",
		ListPath:   "/courseRegistration",
		ShowPath:   "/courseRegistration/show/:id",
		CreatePath: "/courseRegistration/new/:classId",
		Common:     true,
		SelfService: true,
	},
	{
		Name:     "programs",
		Label:    "Programs",
		ListPath: "/programs",
		ShowPath: "/programs/:id",
	},
	{
		Name:          "batchJobUpload",
		Label:         "Add Students",
		ListPath:      "/batchjob/upload",
		AdminOnly:     true,
		StaffCarveOut: true,
	},
	{
		Name:       "staffStudentManagement",
		Label:      "Staff & Students",
		ListPath:   "/userManagement",
		ShowPath:   "/userManagement/view/:id",
		CreatePath: "/userManagement/new",
		EditPath:   "/userManagement/edit/:id",
	},
	{
		Name:       "roleManagement",
		Label:      "Role Management",
		ListPath:   "/roleManagement",
		ShowPath:   "/roleManagement/view/:roleId",
		CreatePath: "/roleManagement/new",
		EditPath:   "/roleManagement/edit/:roleId",
		AdminOnly:  true,
	},
	{
		Name:       "permissionManagement",
		Label:      "Permission Management",
		ListPath:   "/permissionManagement",
		CreatePath: "/permissionManagement/new",
		EditPath:   "/permissionManagement/edit/:permissionId",
		AdminOnly:  true,
	},
	{
		Name:        "notifications",
		Label:       "Notifications",
		ListPath:    "/notifications",
		Common:      true,
		SelfService: true,
	},
}

// Rules maps a normalized path prefix to the roles permitted under it.
// Static for the process lifetime. An empty role set means any
// authenticated role passes.
var Rules = map[string][]string{
	"/courseManagement":     {RoleStaff},
	"/classScheduling":      {RoleStaff},
	"/courseRegistration":   {RoleStudent, RoleStaff},
	"/programs":             {RoleStaff},
	"/students":             {RoleStaff},
	"/batchjob":             {RoleStaff},
	"/userManagement":       {RoleStaff},
	"/roleManagement":       {RoleAdmin},
	"/permissionManagement": {RoleAdmin},
	"/notifications":        {},
}
