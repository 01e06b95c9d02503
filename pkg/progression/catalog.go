package progression

// Upgrade describes one purchasable upgrade.
type Upgrade struct {
	Key         Key    `json:"key"`
	Description string `json:"description"`
	Cost        int64  `json:"cost"`
	// MaxLevel of 0 means the upgrade can be bought without limit.
	MaxLevel int64 `json:"maxLevel"`
}

// Catalog maps upgrade keys to their shop entries.
type Catalog map[Key]Upgrade

// DefaultCatalog returns the shop prices of the coin runner.
func DefaultCatalog() Catalog {
	return Catalog{
		KeySpeed:      {Key: KeySpeed, Description: "Run faster.", Cost: 10},
		KeyJump:       {Key: KeyJump, Description: "Jump higher.", Cost: 10},
		KeyLives:      {Key: KeyLives, Description: "Gain an extra life.", Cost: 20},
		KeyDoubleJump: {Key: KeyDoubleJump, Description: "Jump again mid-air.", Cost: 15},
		KeyAirDash:    {Key: KeyAirDash, Description: "Dash through air.", Cost: 15},
	}
}

// Lookup returns the entry for k.
func (c Catalog) Lookup(k Key) (Upgrade, bool) {
	u, ok := c[k]
	return u, ok
}

// List returns the catalog entries in display order.
func (c Catalog) List() []Upgrade {
	list := make([]Upgrade, 0, len(c))
	for _, k := range upgradeKeys {
		if u, ok := c[k]; ok {
			list = append(list, u)
		}
	}
	return list
}
