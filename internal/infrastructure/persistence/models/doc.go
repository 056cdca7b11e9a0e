// Package models contains the GORM persistence models. Each model maps one
// table and converts to and from its domain entity; domain packages never see
// gorm tags or column layouts.
package models
