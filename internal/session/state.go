package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// state is the serialized session snapshot. Everything above this
// package treats the file as an opaque blob.
type state struct {
	Cookies []*network.Cookie `json:"cookies"`
}

// saveState snapshots the browsing context's cookies to the state file,
// overwriting any previous snapshot.
func (p *Provider) saveState(tab context.Context) error {
	var st state
	if err := chromedp.Run(tab, chromedp.ActionFunc(func(ctx context.Context) error {
		cookies, err := network.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		st.Cookies = cookies
		return nil
	})); err != nil {
		return fmt.Errorf("failed to read cookies: %w", err)
	}
	data, err := json.MarshalIndent(&st, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(p.cfg.StateFile, append(data, '\n'), 0600)
}

// restoreState injects a previously saved snapshot, if one exists.
func (p *Provider) restoreState(tab context.Context) error {
	data, err := os.ReadFile(p.cfg.StateFile)
	if os.IsNotExist(err) {
		return nil
	} else if err != nil {
		return err
	}
	var st state
	if err := json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("corrupt session state file %s: %w", p.cfg.StateFile, err)
	}
	if len(st.Cookies) == 0 {
		return nil
	}
	return chromedp.Run(tab, chromedp.ActionFunc(func(ctx context.Context) error {
		restored := 0
		for _, c := range st.Cookies {
			set := network.SetCookie(c.Name, c.Value).
				WithDomain(c.Domain).
				WithPath(c.Path).
				WithSecure(c.Secure).
				WithHTTPOnly(c.HTTPOnly).
				WithSameSite(c.SameSite)
			if c.Expires > 0 {
				expires := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
				set = set.WithExpires(&expires)
			}
			if err := set.Do(ctx); err != nil {
				p.log.Debug().Err(err).Msgf("could not restore cookie %s", c.Name)
				continue
			}
			restored++
		}
		p.log.Debug().Int("restored", restored).Int("total", len(st.Cookies)).Msg("session state restored")
		return nil
	}))
}
