// Package domain contains the core model types and component interfaces.
//
// Dependency rule: domain depends on nothing else in this module. All other
// packages depend on domain, never the other way around.
package domain
