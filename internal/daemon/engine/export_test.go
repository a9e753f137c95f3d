package engine

import "github.com/watchfire-io/nowplaying/internal/daemon/reconcile"

func errUnknownZone() error { return reconcile.ErrUnknownZone }
