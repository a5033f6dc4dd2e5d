// Package mocks provides mock implementations for testing the greenhouse session core.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for our port interfaces.
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	store := mocks.NewMockRoleStore(ctrl)
//	store.EXPECT().RolesForUser(gomock.Any(), "u1").Return([]auth.Role{auth.RoleAdmin}, nil)
package mocks

// Generate mock for RoleStore interface from internal/ports package.
// This creates MockRoleStore with methods for all RoleStore interface methods:
// RolesForUser
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=role_store_mock.go github.com/target/greenhouse/internal/ports RoleStore

// Generate mock for WelcomeTransport interface from internal/ports package.
// This creates MockWelcomeTransport with methods for all WelcomeTransport interface methods:
// Send
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=welcome_transport_mock.go github.com/target/greenhouse/internal/ports WelcomeTransport

// Generate mock for WelcomeFlagStore interface from internal/ports package.
// This creates MockWelcomeFlagStore with methods for all WelcomeFlagStore interface methods:
// Delivered, MarkDelivered
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=welcome_flag_store_mock.go github.com/target/greenhouse/internal/ports WelcomeFlagStore
