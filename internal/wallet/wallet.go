package wallet

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Klingon-tech/klingnet-walletd/internal/account"
	klog "github.com/Klingon-tech/klingnet-walletd/internal/log"
	"github.com/Klingon-tech/klingnet-walletd/internal/storage"
	"github.com/Klingon-tech/klingnet-walletd/pkg/crypto"
	"github.com/Klingon-tech/klingnet-walletd/pkg/types"
	"github.com/rs/zerolog"
)

// Wallet errors.
var (
	ErrUnknownAccount = errors.New("unknown account")
	ErrClosed         = errors.New("wallet is closed")
)

// Options configures an opened wallet.
type Options struct {
	Chain           account.Chain
	SafetyMarginPct uint64
	// State caches account deployment status across restarts. Optional.
	State storage.DB
}

// AccountInfo describes a wallet account for callers outside the wallet.
type AccountInfo struct {
	Address     types.Address `json:"address"`
	Name        string        `json:"name"`
	Index       uint32        `json:"index"`
	NeedsDeploy bool          `json:"needs_deploy"`
}

type walletAccount struct {
	*account.Account
	index uint32
	key   *crypto.PrivateKey
}

func (a *walletAccount) info() AccountInfo {
	return AccountInfo{
		Address:     a.Address(),
		Name:        a.Name(),
		Index:       a.index,
		NeedsDeploy: a.NeedsDeploy(),
	}
}

// Wallet is an unlocked keystore wallet: its accounts, the selected account
// and their deployment status.
type Wallet struct {
	name   string
	ks     *Keystore
	opts   Options
	logger zerolog.Logger

	mu       sync.RWMutex
	master   *HDKey
	accounts []*walletAccount
	byAddr   map[types.Address]*walletAccount
	selected *walletAccount
}

// Create writes a new wallet from mnemonic and records its first account.
func Create(ks *Keystore, name, mnemonic string, password []byte, params EncryptionParams) (AccountEntry, error) {
	seed, err := SeedFromMnemonic(mnemonic, "")
	if err != nil {
		return AccountEntry{}, err
	}
	defer wipe(seed)

	master, err := NewMasterKey(seed)
	if err != nil {
		return AccountEntry{}, err
	}
	key, err := master.DeriveAccount(0)
	if err != nil {
		return AccountEntry{}, err
	}

	if err := ks.Create(name, seed, password, params); err != nil {
		return AccountEntry{}, err
	}
	entry := AccountEntry{Index: 0, Name: accountName(0), Address: key.Address().String()}
	if err := ks.AddAccount(name, entry); err != nil {
		return AccountEntry{}, err
	}
	if err := ks.SetSelected(name, entry.Address); err != nil {
		return AccountEntry{}, err
	}
	return entry, nil
}

// Open unlocks a wallet and builds its accounts.
func Open(ks *Keystore, name string, password []byte, opts Options) (*Wallet, error) {
	seed, err := ks.Load(name, password)
	if err != nil {
		return nil, err
	}
	defer wipe(seed)

	master, err := NewMasterKey(seed)
	if err != nil {
		return nil, err
	}

	w := &Wallet{
		name:   name,
		ks:     ks,
		opts:   opts,
		logger: klog.WithComponent("wallet").With().Str("wallet", name).Logger(),
		master: master,
		byAddr: make(map[types.Address]*walletAccount),
	}

	entries, err := ks.ListAccounts(name)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		wa, err := w.derive(e.Index, e.Name)
		if err != nil {
			return nil, err
		}
		if wa.Address().String() != e.Address {
			return nil, fmt.Errorf("account %d: keystore address %s does not match derived %s", e.Index, e.Address, wa.Address())
		}
		w.add(wa)
	}

	if len(w.accounts) == 0 {
		if _, err := w.NewAccount(""); err != nil {
			return nil, err
		}
	}

	w.selected = w.accounts[0]
	if sel, err := ks.Selected(name); err == nil && sel != "" {
		if addr, err := types.ParseAddress(sel); err == nil {
			if wa, ok := w.byAddr[addr]; ok {
				w.selected = wa
			}
		}
	}

	w.logger.Info().
		Int("accounts", len(w.accounts)).
		Str("selected", w.selected.Address().String()).
		Msg("Wallet unlocked")
	return w, nil
}

func accountName(index uint32) string {
	return fmt.Sprintf("Account %d", index+1)
}

func (w *Wallet) derive(index uint32, name string) (*walletAccount, error) {
	hd, err := w.master.DeriveAccount(index)
	if err != nil {
		return nil, err
	}
	key, err := hd.Signer()
	if err != nil {
		return nil, err
	}
	acct := account.New(name, key, w.opts.Chain, w.opts.SafetyMarginPct)
	if deployed, ok := w.cachedDeployed(acct.Address()); ok {
		acct.SetDeployed(deployed)
	}
	return &walletAccount{Account: acct, index: index, key: key}, nil
}

func (w *Wallet) add(wa *walletAccount) {
	w.accounts = append(w.accounts, wa)
	w.byAddr[wa.Address()] = wa
}

// Name returns the wallet name.
func (w *Wallet) Name() string { return w.name }

// Accounts lists the wallet accounts by index.
func (w *Wallet) Accounts() []AccountInfo {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]AccountInfo, len(w.accounts))
	for i, wa := range w.accounts {
		out[i] = wa.info()
	}
	return out
}

// SelectedAccount returns the selected account.
func (w *Wallet) SelectedAccount() (AccountInfo, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.selected == nil {
		return AccountInfo{}, false
	}
	return w.selected.info(), true
}

// Select makes addr the selected account and persists the choice.
func (w *Wallet) Select(addr types.Address) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.master == nil {
		return ErrClosed
	}
	wa, ok := w.byAddr[addr]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAccount, addr)
	}
	if err := w.ks.SetSelected(w.name, addr.String()); err != nil {
		return err
	}
	w.selected = wa
	w.logger.Info().Str("account", addr.String()).Msg("Account selected")
	return nil
}

// NewAccount derives the next account and records it in the keystore. An
// empty name gets a default label.
func (w *Wallet) NewAccount(name string) (AccountInfo, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.master == nil {
		return AccountInfo{}, ErrClosed
	}

	index, err := w.ks.NextIndex(w.name)
	if err != nil {
		return AccountInfo{}, err
	}
	if name == "" {
		name = accountName(index)
	}
	wa, err := w.derive(index, name)
	if err != nil {
		return AccountInfo{}, err
	}
	entry := AccountEntry{Index: index, Name: name, Address: wa.Address().String()}
	if err := w.ks.AddAccount(w.name, entry); err != nil {
		return AccountInfo{}, err
	}
	w.add(wa)

	w.logger.Info().Uint32("index", index).Str("account", entry.Address).Msg("Account created")
	return wa.info(), nil
}

// Account returns the account with address addr, or the selected account
// when addr is nil. It returns nil when there is no such account.
func (w *Wallet) Account(addr *types.Address) *account.Account {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if addr == nil {
		if w.selected == nil {
			return nil
		}
		return w.selected.Account
	}
	if wa, ok := w.byAddr[*addr]; ok {
		return wa.Account
	}
	return nil
}

// SyncDeployStatus refreshes every account's deployment status from the
// chain. Accounts that cannot be queried keep their cached status.
func (w *Wallet) SyncDeployStatus(ctx context.Context) error {
	w.mu.RLock()
	accounts := append([]*walletAccount(nil), w.accounts...)
	w.mu.RUnlock()

	var errs []error
	for _, wa := range accounts {
		deployed, err := wa.Refresh(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", wa.Address(), err))
			continue
		}
		w.storeDeployed(wa.Address(), deployed)
	}
	return errors.Join(errs...)
}

// MarkDeployed records that addr has been deployed.
func (w *Wallet) MarkDeployed(addr types.Address) {
	if a := w.Account(&addr); a != nil {
		a.SetDeployed(true)
		w.storeDeployed(addr, true)
	}
}

func (w *Wallet) cachedDeployed(addr types.Address) (bool, bool) {
	if w.opts.State == nil {
		return false, false
	}
	v, err := w.opts.State.Get(addr[:])
	if err != nil || len(v) != 1 {
		return false, false
	}
	return v[0] == 1, true
}

func (w *Wallet) storeDeployed(addr types.Address, deployed bool) {
	if w.opts.State == nil {
		return
	}
	v := []byte{0}
	if deployed {
		v[0] = 1
	}
	if err := w.opts.State.Put(addr[:], v); err != nil {
		w.logger.Warn().Err(err).Str("account", addr.String()).Msg("Failed to cache deployment status")
	}
}

// Close wipes key material. The wallet cannot sign afterwards.
func (w *Wallet) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, wa := range w.accounts {
		wa.key.Zero()
	}
	w.master = nil
	w.selected = nil
	w.byAddr = make(map[types.Address]*walletAccount)
	w.accounts = nil
}
