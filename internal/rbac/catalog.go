package rbac

// Role keys seeded at deployment.
const (
	RoleAdmin         = "admin"
	RoleEditorInChief = "editor_in_chief"
	RoleJournalist    = "journalist"
	RoleAuthor        = "author"
	RoleUser          = "user"
)

// PrivilegedRoles may create content directly in published state.
var PrivilegedRoles = []string{RoleAdmin, RoleEditorInChief}

const (
	// PermUsersView allows listing user accounts.
	PermUsersView = "users.view"
	// PermUsersCreate allows creating user accounts.
	PermUsersCreate = "users.create"
	// PermUsersUpdate allows editing user profiles.
	PermUsersUpdate = "users.update"
	// PermUsersDelete allows deleting user accounts.
	PermUsersDelete = "users.delete"
	// PermUsersActivate allows toggling account activity.
	PermUsersActivate = "users.activate"
	// PermUsersSubmit allows submitting an account for review.
	PermUsersSubmit = "users.submit"
	// PermUsersReviewView exposes the account review queue.
	PermUsersReviewView = "users.review.view"
	// PermUsersReviewApprove allows approving accounts.
	PermUsersReviewApprove = "users.review.approve"
	// PermUsersReviewReject allows rejecting accounts.
	PermUsersReviewReject = "users.review.reject"
	// PermUsersArchive allows archiving accounts.
	PermUsersArchive = "users.archive"
)

const (
	PermArticlesView          = "articles.view"
	PermArticlesCreate        = "articles.create"
	PermArticlesUpdate        = "articles.update"
	PermArticlesDelete        = "articles.delete"
	PermArticlesSubmit        = "articles.submit_review"
	PermArticlesReviewView    = "articles.review.view"
	PermArticlesReviewApprove = "articles.review.approve"
	PermArticlesReviewReject  = "articles.review.reject"
	PermArticlesArchive       = "articles.archive"
)

const (
	PermCategoriesView          = "categories.view"
	PermCategoriesCreate        = "categories.create"
	PermCategoriesUpdate        = "categories.update"
	PermCategoriesDelete        = "categories.delete"
	PermCategoriesReorder       = "categories.reorder"
	PermCategoriesSubmit        = "categories.submit"
	PermCategoriesReviewView    = "categories.review.view"
	PermCategoriesReviewApprove = "categories.review.approve"
	PermCategoriesReviewReject  = "categories.review.reject"
	PermCategoriesArchive       = "categories.archive"
)

const (
	PermAdsView          = "ads.view"
	PermAdsCreate        = "ads.create"
	PermAdsUpdate        = "ads.update"
	PermAdsDelete        = "ads.delete"
	PermAdsSubmit        = "ads.submit"
	PermAdsReviewView    = "ads.review.view"
	PermAdsReviewApprove = "ads.review.approve"
	PermAdsReviewReject  = "ads.review.reject"
	PermAdsArchive       = "ads.archive"

	PermAdPlacementsView   = "ads.placements.view"
	PermAdPlacementsCreate = "ads.placements.create"
	PermAdPlacementsUpdate = "ads.placements.update"
	PermAdPlacementsDelete = "ads.placements.delete"
)

const (
	PermAuthorsView      = "authors.view"
	PermAuthorsStatsView = "authors.stats.view"

	PermSettingsView   = "settings.view"
	PermSettingsUpdate = "settings.update"
)

const (
	PermMediaView    = "media.view"
	PermMediaUpload  = "media.upload"
	PermMediaDelete  = "media.delete"
	PermMediaReorder = "media.reorder"

	PermCommentsView     = "comments.view"
	PermCommentsCreate   = "comments.create"
	PermCommentsDelete   = "comments.delete"
	PermCommentsModerate = "comments.moderate"

	PermLikesToggle = "likes.toggle"
	PermLikesView   = "likes.view"
)

const (
	PermNewsletterView   = "newsletter.view"
	PermNewsletterUpdate = "newsletter.update"
	PermNewsletterDelete = "newsletter.delete"

	PermContactsView     = "contacts.view"
	PermContactsDelete   = "contacts.delete"
	PermContactsMarkRead = "contacts.mark_read"
	PermContactsArchive  = "contacts.archive"
)

const (
	PermRolesView         = "rbac.roles.view"
	PermRolesCreate       = "rbac.roles.create"
	PermRolesUpdate       = "rbac.roles.update"
	PermRolesDelete       = "rbac.roles.delete"
	PermPermissionsView   = "rbac.permissions.view"
	PermPermissionsAssign = "rbac.permissions.assign"
	PermUsersAssignRoles  = "rbac.users.assign_roles"
)

// CatalogEntry describes one permission as seeded into the permissions table.
type CatalogEntry struct {
	Key   string `yaml:"key" json:"key"`
	Label string `yaml:"label" json:"label"`
	Group string `yaml:"group" json:"group"`
}

// Catalog returns every permission the API declares, grouped by feature area.
func Catalog() []CatalogEntry {
	return []CatalogEntry{
		{PermUsersView, "View users", "Users"},
		{PermUsersCreate, "Create users", "Users"},
		{PermUsersUpdate, "Update users", "Users"},
		{PermUsersDelete, "Delete users", "Users"},
		{PermUsersActivate, "Activate/Deactivate account", "Users"},
		{PermUsersSubmit, "Submit user for review", "Users Workflow"},
		{PermUsersReviewView, "View users review queue", "Users Workflow"},
		{PermUsersReviewApprove, "Approve user", "Users Workflow"},
		{PermUsersReviewReject, "Reject user", "Users Workflow"},
		{PermUsersArchive, "Archive user", "Users Workflow"},

		{PermArticlesView, "View articles", "Articles"},
		{PermArticlesCreate, "Create articles", "Articles"},
		{PermArticlesUpdate, "Update articles", "Articles"},
		{PermArticlesDelete, "Delete articles", "Articles"},
		{PermArticlesSubmit, "Submit to review", "Articles Workflow"},
		{PermArticlesReviewView, "View review queue", "Articles Workflow"},
		{PermArticlesReviewApprove, "Approve article", "Articles Workflow"},
		{PermArticlesReviewReject, "Reject article", "Articles Workflow"},
		{PermArticlesArchive, "Archive article", "Articles Workflow"},

		{PermCategoriesView, "View categories", "Categories"},
		{PermCategoriesCreate, "Create categories", "Categories"},
		{PermCategoriesUpdate, "Update categories", "Categories"},
		{PermCategoriesDelete, "Delete categories", "Categories"},
		{PermCategoriesReorder, "Reorder categories", "Categories"},
		{PermCategoriesSubmit, "Submit category for review", "Categories Workflow"},
		{PermCategoriesReviewView, "View categories review queue", "Categories Workflow"},
		{PermCategoriesReviewApprove, "Approve category", "Categories Workflow"},
		{PermCategoriesReviewReject, "Reject category", "Categories Workflow"},
		{PermCategoriesArchive, "Archive category", "Categories Workflow"},

		{PermMediaView, "View media", "Media"},
		{PermMediaUpload, "Attach media", "Media"},
		{PermMediaDelete, "Delete media", "Media"},
		{PermMediaReorder, "Reorder media", "Media"},

		{PermCommentsView, "View comments", "Comments"},
		{PermCommentsCreate, "Create comment", "Comments"},
		{PermCommentsDelete, "Delete comment", "Comments"},
		{PermCommentsModerate, "Moderate comment", "Comments"},

		{PermLikesToggle, "Like/Unlike", "Engagement"},
		{PermLikesView, "View likes", "Engagement"},

		{PermAdsView, "View ads", "Ads"},
		{PermAdsCreate, "Create ads", "Ads"},
		{PermAdsUpdate, "Update ads", "Ads"},
		{PermAdsDelete, "Delete ads", "Ads"},
		{PermAdsSubmit, "Submit ad for review", "Ads Workflow"},
		{PermAdsReviewView, "View ads review queue", "Ads Workflow"},
		{PermAdsReviewApprove, "Approve ad", "Ads Workflow"},
		{PermAdsReviewReject, "Reject ad", "Ads Workflow"},
		{PermAdsArchive, "Archive ad", "Ads Workflow"},
		{PermAdPlacementsView, "View ad placements", "Ad Placements"},
		{PermAdPlacementsCreate, "Create ad placement", "Ad Placements"},
		{PermAdPlacementsUpdate, "Update ad placement", "Ad Placements"},
		{PermAdPlacementsDelete, "Delete ad placement", "Ad Placements"},

		{PermAuthorsView, "View authors", "Authors"},
		{PermAuthorsStatsView, "View author statistics", "Authors"},

		{PermSettingsView, "View settings", "Settings"},
		{PermSettingsUpdate, "Update settings", "Settings"},

		{PermNewsletterView, "View subscribers", "Newsletter"},
		{PermNewsletterUpdate, "Update subscriber", "Newsletter"},
		{PermNewsletterDelete, "Delete subscriber", "Newsletter"},

		{PermContactsView, "View contact messages", "Contacts"},
		{PermContactsDelete, "Delete contact message", "Contacts"},
		{PermContactsMarkRead, "Mark read/unread", "Contacts"},
		{PermContactsArchive, "Archive/unarchive messages", "Contacts"},

		{PermRolesView, "View RBAC roles", "RBAC"},
		{PermRolesCreate, "Create RBAC role", "RBAC"},
		{PermRolesUpdate, "Update RBAC role", "RBAC"},
		{PermRolesDelete, "Delete RBAC role", "RBAC"},
		{PermPermissionsView, "View permissions", "RBAC"},
		{PermPermissionsAssign, "Assign permissions to roles", "RBAC"},
		{PermUsersAssignRoles, "Assign roles to users", "RBAC"},
	}
}

// CatalogKeys returns the catalog keys in declaration order.
func CatalogKeys() []string {
	entries := Catalog()
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		keys = append(keys, e.Key)
	}
	return keys
}
