package model

// Panel API resource paths. The first element of every cache key is one of
// these; the REST client fetches GET {api}{path}/{scope...}.
const (
	PathOrder            = "/order"
	PathOrdersToday      = PathOrder + "/today"
	PathTableOrders      = PathOrder + "/table"
	PathCollectionsToday = PathOrder + "/collection/today"
	PathCollectionsQuery = PathOrder + "/collection/query"
	PathOrderDiscount    = PathOrder + "/discount"
	PathOrderNotes       = PathOrder + "/notes"
	PathTables           = "/table"
	PathTableFeedback    = PathTables + "/feedback"
	PathNotification     = "/notification"
	PathNotificationsNew = PathNotification + "/new"
	PathNotificationsAll = PathNotification + "/all"
	PathStockQuery       = "/stock/query"
	PathAccounting       = "/accounting"
	PathMenu             = "/menu"
	PathUsers            = "/users"
	PathCurrentUser      = "/users/me"
	PathKitchens         = PathMenu + "/kitchens"
	PathCategories       = PathMenu + "/categories"
	PathHealth           = "/health"
	PathMailLogs         = "/mail/logs"
	PathWebhookLogs      = "/webhook-log"
	PathShift            = "/shift"
	PathShiftChange      = "/shift-change"
	PathVisits           = "/visits"
	PathReservations     = "/reservations"
	PathRewards          = "/rewards"
	PathGames            = "/games"
	PathLocation         = "/location"
	PathActivity         = "/activity"
	PathAnomaly          = "/anomaly"
	PathAuthorization    = "/authorization"
	PathBreak            = "/break"
	PathButtonCall       = "/button-call"
	PathChecklist        = "/checklist"
	PathEducation        = "/education"
	PathIkas             = "/ikas"
	PathMenuPopular      = PathMenu + "/popular"
	PathMenuItems        = PathMenu + "/items"
	PathUpperCategories  = PathMenu + "/upper-categories"
	PathBrands           = PathAccounting + "/brands"
	PathCounts           = PathAccounting + "/counts"
	PathCountList        = PathAccounting + "/count-list"
	PathExpenses         = PathAccounting + "/expenses"
	PathExpenseTypes     = PathAccounting + "/expense-types"
	PathPaymentMethods   = PathAccounting + "/payment-methods"
	PathProducts         = PathAccounting + "/products"
	PathStocks           = PathAccounting + "/stocks"
	PathVendors          = PathAccounting + "/vendors"
)

// Order statuses that never warrant a kitchen alert.
const (
	OrderStatusCancelled = "cancelled"
	OrderStatusReturned  = "returned"
	OrderStatusWasted    = "wasted"
)

// TableTypeTakeout marks tables created for takeaway orders.
const TableTypeTakeout = "takeout"

// IsTerminalStatus reports whether an order status is a terminal or negative
// state.
func IsTerminalStatus(status string) bool {
	switch status {
	case OrderStatusCancelled, OrderStatusReturned, OrderStatusWasted:
		return true
	default:
		return false
	}
}
