// Package events names the server-pushed events and holds the registry of
// events that only require a blanket cache invalidation.
package events

import (
	"maps"
	"slices"

	"github.com/gamecafe/panelsync/internal/model"
	"github.com/gamecafe/panelsync/internal/querycache"
)

// Connection lifecycle signals emitted by the socket.
const (
	Connect          = "connect"
	Disconnect       = "disconnect"
	Reconnect        = "reconnect"
	ReconnectAttempt = "reconnect_attempt"
	ReconnectError   = "reconnect_error"
	ReconnectFailed  = "reconnect_failed"
	ConnectError     = "connect_error"
	// Reset is sent by the server when the requested replay window is gone.
	Reset = "reset"
)

// Domain events with bespoke handlers.
const (
	OrderCreated        = "orderCreated"
	OrderUpdated        = "orderUpdated"
	OrderDeleted        = "orderDeleted"
	CollectionChanged   = "collectionChanged"
	NotificationChanged = "notificationChanged"
	SingleTableChanged  = "singleTableChanged"
	TableCreated        = "tableCreated"
	TableDeleted        = "tableDeleted"
	TableClosed         = "tableClosed"
	GameplayCreated     = "gameplayCreated"
	GameplayUpdated     = "gameplayUpdated"
	GameplayDeleted     = "gameplayDeleted"
	CreateMultipleOrder = "createMultipleOrder"
)

// Registry events that also change the session's reference data.
const (
	KitchenChanged  = "kitchenChanged"
	CategoryChanged = "categoryChanged"
	UserChanged     = "userChanged"
)

// SessionInputs lists the registry events after which the session mirror
// reloads its kitchens, categories or user.
var SessionInputs = []string{KitchenChanged, CategoryChanged, UserChanged}

// Patched lists the events whose handlers patch cached data in place.
var Patched = []string{
	OrderCreated, OrderUpdated, OrderDeleted, CollectionChanged,
	NotificationChanged, SingleTableChanged, TableCreated, TableDeleted,
	TableClosed, GameplayCreated, GameplayUpdated, GameplayDeleted,
	CreateMultipleOrder,
}

// Lifecycle lists every connection lifecycle signal.
var Lifecycle = []string{
	Connect, Disconnect, Reconnect, ReconnectAttempt,
	ReconnectError, ReconnectFailed, ConnectError,
}

func key(path string) querycache.Key { return querycache.NewKey(path) }

// registry maps event names to the key prefixes they invalidate.
var registry = map[string][]querycache.Key{
	"accountingChanged":         {key(model.PathAccounting)},
	"activityChanged":           {key(model.PathActivity)},
	"anomalyChanged":            {key(model.PathAnomaly)},
	"authorizationChanged":      {key(model.PathAuthorization)},
	"breakChanged":              {key(model.PathBreak)},
	"brandChanged":              {key(model.PathBrands)},
	"buttonCallChanged":         {key(model.PathButtonCall)},
	CategoryChanged:             {key(model.PathCategories)},
	"checklistChanged":          {key(model.PathChecklist)},
	CollectionChanged:           {key(model.PathCollectionsQuery)},
	"countChanged":              {key(model.PathCounts)},
	"countListChanged":          {key(model.PathCountList)},
	"discountChanged":           {key(model.PathOrderDiscount)},
	"educationChanged":          {key(model.PathEducation)},
	"expenseChanged":            {key(model.PathExpenses)},
	"expenseTypeChanged":        {key(model.PathExpenseTypes)},
	"feedbackChanged":           {key(model.PathTableFeedback)},
	"gameChanged":               {key(model.PathGames)},
	"ikasChanged":               {key(model.PathIkas)},
	"itemChanged":               {key(model.PathMenuItems)},
	KitchenChanged:              {key(model.PathKitchens)},
	"locationChanged":           {key(model.PathLocation)},
	"mailLogChanged":            {key(model.PathMailLogs)},
	"menuPopularChanged":        {key(model.PathMenuPopular)},
	"orderNotesChanged":         {key(model.PathOrderNotes)},
	"paymentMethodChanged":      {key(model.PathPaymentMethods)},
	"productChanged":            {key(model.PathProducts)},
	"reservationChanged":        {key(model.PathReservations)},
	"rewardChanged":             {key(model.PathRewards)},
	"shiftChanged":              {key(model.PathShift)},
	"shiftChangeRequestChanged": {key(model.PathShiftChange)},
	"stockChanged":              {key(model.PathStocks), key(model.PathStockQuery)},
	"tableChanged":              {key(model.PathTables)},
	"upperCategoryChanged":      {key(model.PathUpperCategories)},
	UserChanged:                 {key(model.PathUsers)},
	"vendorChanged":             {key(model.PathVendors)},
	"visitChanged":              {key(model.PathVisits)},
	"webhookLogChanged":         {key(model.PathWebhookLogs)},
}

// Names returns the registry's event names in sorted order.
func Names() []string {
	return slices.Sorted(maps.Keys(registry))
}

// Prefixes returns the prefixes invalidated by an event.
func Prefixes(name string) ([]querycache.Key, bool) {
	prefixes, ok := registry[name]
	if !ok {
		return nil, false
	}

	return slices.Clone(prefixes), true
}
