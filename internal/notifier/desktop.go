package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/gen2brain/beeep"
)

const statusTitle = "Internet Connection Status"

var desktopNotify = func(title, message string) error {
	return beeep.Notify(title, message, "")
}

// Desktop raises a system notification through the platform's notifier
// (notify-send, osascript or toast).
type Desktop struct{}

func (Desktop) Alert(_ context.Context, evt Event) error {
	return desktopNotify(statusTitle, fmt.Sprintf("%s: lost connection to %s", evt.To, evt.Target))
}

func (Desktop) Resolved(_ context.Context, evt Event) error {
	return desktopNotify(statusTitle, fmt.Sprintf("%s: back after %s", evt.To, evt.Downtime.Round(time.Second)))
}
