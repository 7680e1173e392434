package core

import "strings"

const (
	minPort = 1
	maxPort = 65535
)

// Validate checks the fields required by add_database.
func (d Draft) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return Invalid("name", "connection name is required")
	}
	return d.Probe().Validate()
}

// Validate checks the fields required by test_connection.
func (p Probe) Validate() error {
	t := p.Type
	if t == "" {
		t = Postgres
	}
	if !t.Valid() {
		return Invalid("type", "unsupported database type "+string(t))
	}
	if strings.TrimSpace(p.DatabaseName) == "" {
		return Invalid("databaseName", "database name is required")
	}
	if t == SQLite {
		return nil
	}
	if strings.TrimSpace(p.Host) == "" {
		return Invalid("host", "host is required")
	}
	if err := validatePort(p.Port); err != nil {
		return err
	}
	if strings.TrimSpace(p.User) == "" {
		return Invalid("user", "user is required")
	}
	return validateTunnel(p.Tunnel)
}

// Validate checks every supplied field of the patch. A patch must change
// at least one field.
func (p Patch) Validate() error {
	if p.Empty() {
		return Invalid("", "nothing to update")
	}
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return Invalid("name", "connection name cannot be empty")
	}
	if p.Type != nil && !p.Type.Valid() {
		return Invalid("type", "unsupported database type "+string(*p.Type))
	}
	if p.Host != nil && strings.TrimSpace(*p.Host) == "" {
		return Invalid("host", "host cannot be empty")
	}
	if p.Port != nil {
		if err := validatePort(*p.Port); err != nil {
			return err
		}
	}
	if p.DatabaseName != nil && strings.TrimSpace(*p.DatabaseName) == "" {
		return Invalid("databaseName", "database name cannot be empty")
	}
	if p.User != nil && strings.TrimSpace(*p.User) == "" {
		return Invalid("user", "user cannot be empty")
	}
	if p.Tunnel != nil && p.Tunnel.Host != "" {
		return validateTunnel(p.Tunnel)
	}
	return nil
}

// ValidateStatement rejects an empty SQL text.
func ValidateStatement(sql string) error {
	if strings.TrimSpace(sql) == "" {
		return Invalid("sql", "SQL cannot be empty")
	}
	return nil
}

// ValidatePrompt rejects an empty natural-language prompt.
func ValidatePrompt(prompt string) error {
	if strings.TrimSpace(prompt) == "" {
		return Invalid("prompt", "prompt cannot be empty")
	}
	return nil
}

// ValidateID rejects an empty connection id.
func ValidateID(id string) error {
	if strings.TrimSpace(id) == "" {
		return Invalid("databaseId", "connection id is required")
	}
	return nil
}

func validatePort(port int) error {
	if port < minPort || port > maxPort {
		return Invalid("port", "port must be between 1 and 65535")
	}
	return nil
}

func validateTunnel(t *Tunnel) error {
	if t == nil || t.Host == "" {
		return nil
	}
	if strings.TrimSpace(t.User) == "" {
		return Invalid("tunnel.user", "SSH user is required")
	}
	if t.Port != 0 {
		if err := validatePort(t.Port); err != nil {
			return Invalid("tunnel.port", "port must be between 1 and 65535")
		}
	}
	return nil
}
