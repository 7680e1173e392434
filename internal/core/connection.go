// internal/core/connection.go
package core

import (
	"strings"
	"time"
)

// DriverType represents supported database types
type DriverType string

const (
	Postgres DriverType = "postgres"
	MySQL    DriverType = "mysql"
	SQLite   DriverType = "sqlite"
)

// DefaultPort returns the conventional port for a driver, 0 for file databases.
func (t DriverType) DefaultPort() int {
	switch t {
	case MySQL:
		return 3306
	case SQLite:
		return 0
	default:
		return 5432
	}
}

// Valid reports whether t names a supported driver.
func (t DriverType) Valid() bool {
	switch t {
	case Postgres, MySQL, SQLite:
		return true
	}
	return false
}

// ConnectionStatus is the last known reachability of a connection.
type ConnectionStatus string

const (
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusConnecting   ConnectionStatus = "connecting"
	StatusConnected    ConnectionStatus = "connected"
	StatusFailed       ConnectionStatus = "failed"
)

// Tunnel describes an optional SSH hop in front of the database.
// Authentication uses the key file or the running ssh-agent.
type Tunnel struct {
	Host    string `json:"host"`
	Port    int    `json:"port,omitempty"`
	User    string `json:"user"`
	KeyPath string `json:"keyPath,omitempty"`
}

// Connection is a registered database target as returned to callers.
// It never carries the password.
type Connection struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Type         DriverType       `json:"type,omitempty"`
	Host         string           `json:"host"`
	Port         int              `json:"port"`
	DatabaseName string           `json:"databaseName"`
	User         string           `json:"user"`
	Status       ConnectionStatus `json:"status"`
	Tunnel       *Tunnel          `json:"tunnel,omitempty"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}

// Address renders the connection target for display.
func (c Connection) Address() string {
	if c.Type == SQLite {
		return "sqlite:" + c.DatabaseName
	}
	return formatAddress(c.User, c.Host, c.Port, c.DatabaseName)
}

// Draft is the input of add_database.
type Draft struct {
	Name         string     `json:"name"`
	Type         DriverType `json:"type,omitempty"`
	Host         string     `json:"host"`
	Port         int        `json:"port"`
	DatabaseName string     `json:"databaseName"`
	User         string     `json:"user"`
	Password     string     `json:"password"`
	Tunnel       *Tunnel    `json:"tunnel,omitempty"`
}

// Probe returns the connectivity-relevant fields of the draft.
func (d Draft) Probe() Probe {
	return Probe{
		Type:         d.Type,
		Host:         d.Host,
		Port:         d.Port,
		DatabaseName: d.DatabaseName,
		User:         d.User,
		Password:     d.Password,
		Tunnel:       d.Tunnel,
	}
}

// Probe is the input of test_connection: a draft without a display name.
type Probe struct {
	Type         DriverType `json:"type,omitempty"`
	Host         string     `json:"host"`
	Port         int        `json:"port"`
	DatabaseName string     `json:"databaseName"`
	User         string     `json:"user"`
	Password     string     `json:"password"`
	Tunnel       *Tunnel    `json:"tunnel,omitempty"`
}

// Patch is the input of update_database. Nil fields are left unchanged.
type Patch struct {
	Name         *string     `json:"name,omitempty"`
	Type         *DriverType `json:"type,omitempty"`
	Host         *string     `json:"host,omitempty"`
	Port         *int        `json:"port,omitempty"`
	DatabaseName *string     `json:"databaseName,omitempty"`
	User         *string     `json:"user,omitempty"`
	Password     *string     `json:"password,omitempty"`
	Tunnel       *Tunnel     `json:"tunnel,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Name == nil && p.Type == nil && p.Host == nil && p.Port == nil &&
		p.DatabaseName == nil && p.User == nil && p.Password == nil && p.Tunnel == nil
}

// TouchesTarget reports whether the patch changes where or how we connect.
func (p Patch) TouchesTarget() bool {
	return p.Type != nil || p.Host != nil || p.Port != nil || p.DatabaseName != nil ||
		p.User != nil || p.Password != nil || p.Tunnel != nil
}

// Apply returns c with the patch applied. The password is not part of
// Connection and is handled by the caller.
func (p Patch) Apply(c Connection) Connection {
	if p.Name != nil {
		c.Name = strings.TrimSpace(*p.Name)
	}
	if p.Type != nil {
		c.Type = *p.Type
	}
	if p.Host != nil {
		c.Host = strings.TrimSpace(*p.Host)
	}
	if p.Port != nil {
		c.Port = *p.Port
	}
	if p.DatabaseName != nil {
		c.DatabaseName = strings.TrimSpace(*p.DatabaseName)
	}
	if p.User != nil {
		c.User = strings.TrimSpace(*p.User)
	}
	if p.Tunnel != nil {
		if p.Tunnel.Host == "" {
			c.Tunnel = nil
		} else {
			t := *p.Tunnel
			c.Tunnel = &t
		}
	}
	return c
}
