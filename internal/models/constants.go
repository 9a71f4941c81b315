package models

// Роли пользователей
const (
	RoleClient     = "client"
	RoleTechnician = "technician"
	RoleAdmin      = "admin"
)

// ValidRoles список валидных ролей
var ValidRoles = map[string]struct{}{
	RoleClient:     {},
	RoleTechnician: {},
	RoleAdmin:      {},
}

// ValidStripeAccountStatuses список валидных состояний Connect аккаунта
var ValidStripeAccountStatuses = map[string]struct{}{
	StripeAccountStatusNone:    {},
	StripeAccountStatusPending: {},
	StripeAccountStatusActive:  {},
}

// ValidTokenTransactionTypes список валидных типов токен-транзакций
var ValidTokenTransactionTypes = map[string]struct{}{
	TokenTransactionPurchase: {},
	TokenTransactionTOA:      {},
	TokenTransactionThankYou: {},
	TokenTransactionRefund:   {},
}
