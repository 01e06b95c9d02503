package progression

import "fmt"

// Key identifies one persisted progression value. The set is closed.
type Key string

const (
	KeyCoins      Key = "coins"
	KeySpeed      Key = "Speed"
	KeyJump       Key = "Jump"
	KeyLives      Key = "Lives"
	KeyDoubleJump Key = "DoubleJump"
	KeyAirDash    Key = "AirDash"
)

// StoreKeyPrefix namespaces progression keys in the persistent store.
const StoreKeyPrefix = "shop:"

var upgradeKeys = []Key{
	KeySpeed,
	KeyJump,
	KeyLives,
	KeyDoubleJump,
	KeyAirDash,
}

// UpgradeKeys returns every upgrade key in display order.
func UpgradeKeys() []Key {
	keys := make([]Key, len(upgradeKeys))
	copy(keys, upgradeKeys)
	return keys
}

// AllKeys returns the currency key followed by every upgrade key.
func AllKeys() []Key {
	return append([]Key{KeyCoins}, upgradeKeys...)
}

// IsUpgrade reports whether k is one of the upgrade keys.
func (k Key) IsUpgrade() bool {
	for _, u := range upgradeKeys {
		if u == k {
			return true
		}
	}
	return false
}

// Valid reports whether k belongs to the enumerated set.
func (k Key) Valid() bool {
	return k == KeyCoins || k.IsUpgrade()
}

// StoreKey returns the key name used by the persistent store.
func (k Key) StoreKey() string {
	return StoreKeyPrefix + string(k)
}

// ParseKey converts a name to a Key.
func ParseKey(s string) (Key, error) {
	k := Key(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown progression key: %q", s)
	}
	return k, nil
}
