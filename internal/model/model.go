package model

// Package model contains the domain models shared across layers (HTTP,
// service, repository, storage). Pure data structures, no persistence
// dependencies and no business logic here.
