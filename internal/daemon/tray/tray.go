package tray

import (
	"sync"
	"sync/atomic"

	"github.com/getlantern/systray"
	"go.uber.org/zap"

	"github.com/watchfire-io/nowplaying/internal/models"
)

// Actions are the user commands the menu can issue.
type Actions interface {
	SelectZone(id string) error
	SelectAuto()
}

// Tray owns the system tray icon and menu. Its presenter methods must be
// called from a single goroutine.
type Tray struct {
	actions Actions
	quit    func()
	logger  *zap.Logger
	ready   atomic.Bool

	statusItem  *systray.MenuItem
	trackItem   *systray.MenuItem
	zonesMenu   *systray.MenuItem
	autoItem    *systray.MenuItem
	zoneSlots   [maxZoneSlots]*systray.MenuItem
	noZonesItem *systray.MenuItem
	quitItem    *systray.MenuItem

	// Maps slot index → zone ID for selection clicks.
	slotMu  sync.RWMutex
	slotIDs [maxZoneSlots]string

	title string
}

// New creates a tray. quit is called when the user picks Quit.
func New(actions Actions, quit func(), logger *zap.Logger) *Tray {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tray{actions: actions, quit: quit, logger: logger.Named("tray")}
}

// Run starts the system tray. This blocks the calling goroutine (must be main).
// onStart is called once the menu exists; onExit when the tray exits.
func (t *Tray) Run(onStart, onExit func()) {
	systray.Run(func() {
		t.build()
		if onStart != nil {
			onStart()
		}
	}, func() {
		if onExit != nil {
			onExit()
		}
	})
}

// Quit signals the tray to exit.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) build() {
	systray.SetTemplateIcon(iconData, iconData)
	systray.SetTooltip("Now Playing")

	header := systray.AddMenuItem("Now Playing", "")
	header.Disable()
	t.statusItem = systray.AddMenuItem(models.Disconnected().String(), "")
	t.statusItem.Disable()
	t.trackItem = systray.AddMenuItem("Waiting for music...", "")
	t.trackItem.Disable()

	systray.AddSeparator()

	t.zonesMenu = systray.AddMenuItem("Select Zone", "Choose which zone to display")
	t.autoItem = t.zonesMenu.AddSubMenuItem("Automatic", "Follow whichever zone is playing")
	for i := 0; i < maxZoneSlots; i++ {
		t.zoneSlots[i] = t.zonesMenu.AddSubMenuItem("", "")
		t.zoneSlots[i].Hide()
	}
	t.noZonesItem = t.zonesMenu.AddSubMenuItem("No zones available", "")
	t.noZonesItem.Disable()

	systray.AddSeparator()
	t.quitItem = systray.AddMenuItem("Quit", "Quit Now Playing")

	go t.handleClicks()
	for i := 0; i < maxZoneSlots; i++ {
		go t.handleSlot(i)
	}
	t.ready.Store(true)
}

func (t *Tray) handleClicks() {
	for {
		select {
		case <-t.autoItem.ClickedCh:
			t.actions.SelectAuto()
		case <-t.quitItem.ClickedCh:
			if t.quit != nil {
				t.quit()
			}
			return
		}
	}
}

func (t *Tray) handleSlot(slot int) {
	for range t.zoneSlots[slot].ClickedCh {
		t.slotMu.RLock()
		id := t.slotIDs[slot]
		t.slotMu.RUnlock()
		if id == "" {
			continue
		}
		if err := t.actions.SelectZone(id); err != nil {
			t.logger.Warn("zone selection failed", zap.String("zone_id", id), zap.Error(err))
		}
	}
}

// RenderSnapshot rebuilds the menu from s.
func (t *Tray) RenderSnapshot(s *models.AppState) {
	if !t.ready.Load() {
		return
	}
	m := BuildMenu(s)

	t.statusItem.SetTitle(m.Status)
	t.trackItem.SetTitle(m.Track)
	setChecked(t.autoItem, m.AutoChecked)

	t.slotMu.Lock()
	for i := 0; i < maxZoneSlots; i++ {
		t.slotIDs[i] = ""
	}
	for i, z := range m.Zones {
		t.slotIDs[i] = z.ZoneID
	}
	t.slotMu.Unlock()

	for i := 0; i < maxZoneSlots; i++ {
		item := t.zoneSlots[i]
		if i >= len(m.Zones) {
			item.Hide()
			continue
		}
		item.SetTitle(m.Zones[i].Label)
		setChecked(item, m.Zones[i].Checked)
		item.Show()
	}
	if m.NoZones {
		t.noZonesItem.Show()
	} else {
		t.noZonesItem.Hide()
	}
	t.logger.Debug("menu rebuilt", zap.Int("zones", len(m.Zones)))
}

// UpdateIcon refreshes the menu-bar title and tooltip from s.
func (t *Tray) UpdateIcon(s *models.AppState) {
	if !t.ready.Load() {
		return
	}
	title := IconTitle(s, t.title)
	if title != t.title {
		t.title = title
		systray.SetTitle(title)
	}
	systray.SetTooltip(Tooltip(s))
	t.trackItem.SetTitle(trackLine(s.CurrentTrack))
}

func setChecked(item *systray.MenuItem, checked bool) {
	if checked {
		item.Check()
	} else {
		item.Uncheck()
	}
}
