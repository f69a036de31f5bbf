package models

// AppConfig is the singleton configuration record. It is stored as one
// JSONB row and unmarshalled over the in-process defaults, so a partial
// row only overrides the fields it carries.
type AppConfig struct {
	StoreEnabled      bool   `json:"storeEnabled"`
	ChatEnabled       bool   `json:"chatEnabled"`
	AdsEnabled        bool   `json:"adsEnabled"`
	AdRewardAmount    int64  `json:"adRewardAmount" validate:"gte=0"` // diamonds per watched ad
	AdDailyLimit      int    `json:"adDailyLimit" validate:"gte=0"`   // max rewarded ads per day
	MinDepositAmount  int64  `json:"minDepositAmount" validate:"gte=0"`
	ContactEmail      string `json:"contactEmail"`
	ContactPhone      string `json:"contactPhone"`
	MaintenanceMode   bool   `json:"maintenanceMode"`
	MaintenanceNotice string `json:"maintenanceNotice"`
}
