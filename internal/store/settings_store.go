package store

import "context"

type SettingsStore struct {
	db DB
}

func NewSettingsStore(db DB) *SettingsStore {
	return &SettingsStore{db: db}
}

// Settings is the single global configuration row. Settlement operations
// read it inside their own transaction and receive it as a value, so no
// operation depends on ambient shared state.
type Settings struct {
	DailyCheckInReward     int64 `db:"daily_check_in_reward"`
	MiningReward           int64 `db:"mining_reward"`
	AdReward               int64 `db:"ad_reward"`
	ReferralReward         int64 `db:"referral_reward"`
	TransactionFee         int64 `db:"transaction_fee"`
	MinSendAmount          int64 `db:"min_send_amount"`
	AdminWalletBalance     int64 `db:"admin_wallet_balance"`
	AdsEnabled             bool  `db:"ads_enabled"`
	MaintenanceModeEnabled bool  `db:"maintenance_mode_enabled"`
}

const settingsColumns = `
	daily_check_in_reward, mining_reward, ad_reward, referral_reward,
	transaction_fee, min_send_amount, admin_wallet_balance,
	ads_enabled, maintenance_mode_enabled
`

func (s *SettingsStore) Get(ctx context.Context) (Settings, error) {
	var row Settings
	err := s.db.GetContext(ctx, &row, `SELECT `+settingsColumns+` FROM app_settings WHERE id = 1`)
	if err != nil {
		return Settings{}, err
	}
	return row, nil
}

// GetTx reads the settings row inside a transaction without locking it.
// Use GetForUpdate when the transaction also writes the row.
func (s *SettingsStore) GetTx(ctx context.Context, tx Getter) (Settings, error) {
	var row Settings
	err := tx.GetContext(ctx, &row, `SELECT `+settingsColumns+` FROM app_settings WHERE id = 1`)
	if err != nil {
		return Settings{}, err
	}
	return row, nil
}

func (s *SettingsStore) GetForUpdate(ctx context.Context, tx Getter) (Settings, error) {
	var row Settings
	err := tx.GetContext(ctx, &row, `SELECT `+settingsColumns+` FROM app_settings WHERE id = 1 FOR UPDATE`)
	if err != nil {
		return Settings{}, err
	}
	return row, nil
}

type SettingsInput struct {
	DailyCheckInReward int64
	MiningReward       int64
	AdReward           int64
	ReferralReward     int64
	TransactionFee     int64
	MinSendAmount      int64
	AdsEnabled         bool
}

func (s *SettingsStore) Update(ctx context.Context, tx Execer, input SettingsInput) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE app_settings
		SET daily_check_in_reward = $1,
		    mining_reward = $2,
		    ad_reward = $3,
		    referral_reward = $4,
		    transaction_fee = $5,
		    min_send_amount = $6,
		    ads_enabled = $7,
		    updated_at = NOW()
		WHERE id = 1
	`, input.DailyCheckInReward, input.MiningReward, input.AdReward, input.ReferralReward,
		input.TransactionFee, input.MinSendAmount, input.AdsEnabled)
	return err
}

func (s *SettingsStore) UpdateAdminWallet(ctx context.Context, tx Execer, balance int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE app_settings SET admin_wallet_balance = $1, updated_at = NOW() WHERE id = 1
	`, balance)
	return err
}

func (s *SettingsStore) MaintenanceEnabled(ctx context.Context) (bool, error) {
	var enabled bool
	err := s.db.GetContext(ctx, &enabled, `SELECT maintenance_mode_enabled FROM app_settings WHERE id = 1`)
	return enabled, err
}

func (s *SettingsStore) SetMaintenanceMode(ctx context.Context, tx Execer, enabled bool) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE app_settings SET maintenance_mode_enabled = $1, updated_at = NOW() WHERE id = 1
	`, enabled)
	return err
}
