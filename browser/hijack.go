package browser

import (
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// resourceTypes maps config strings to Rod protocol resource types.
// Stylesheets are deliberately absent: the range dropdown's visibility
// depends on them.
var resourceTypes = map[string]proto.NetworkResourceType{
	"Image": proto.NetworkResourceTypeImage,
	"Font":  proto.NetworkResourceTypeFont,
	"Media": proto.NetworkResourceTypeMedia,
}

// adHosts are ad and tracking hosts that slow the quote pages down.
var adHosts = map[string]struct{}{
	"doubleclick.net":       {},
	"googlesyndication.com": {},
	"googleadservices.com":  {},
	"google-analytics.com":  {},
	"googletagmanager.com":  {},
	"googletagservices.com": {},
	"amazon-adsystem.com":   {},
	"adnxs.com":             {},
	"adsrvr.org":            {},
	"criteo.com":            {},
	"criteo.net":            {},
	"outbrain.com":          {},
	"taboola.com":           {},
	"moatads.com":           {},
	"pubmatic.com":          {},
	"rubiconproject.com":    {},
	"scorecardresearch.com": {},
	"casalemedia.com":       {},
	"openx.net":             {},
	"demdex.net":            {},
	"bluekai.com":           {},
	"chartbeat.net":         {},
}

// isAdHost checks hostname and each of its parent domains against adHosts.
func isAdHost(host string) bool {
	host = strings.ToLower(host)
	for {
		if _, ok := adHosts[host]; ok {
			return true
		}
		idx := strings.IndexByte(host, '.')
		if idx < 0 {
			return false
		}
		host = host[idx+1:]
	}
}

// setupHijack intercepts every request on page and fails those of a blocked
// resource type or, when blockAds is set, those bound for an ad host.
// It returns nil when there is nothing to block.
func setupHijack(page *rod.Page, blockedTypes []string, blockAds bool) *rod.HijackRouter {
	blocked := make(map[proto.NetworkResourceType]struct{}, len(blockedTypes))
	for _, name := range blockedTypes {
		if rt, ok := resourceTypes[name]; ok {
			blocked[rt] = struct{}{}
		}
	}
	if len(blocked) == 0 && !blockAds {
		return nil
	}

	router := page.HijackRequests()
	_ = router.Add("*", "", func(h *rod.Hijack) {
		if _, ok := blocked[h.Request.Type()]; ok {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		if blockAds {
			if isAdHost(h.Request.URL().Hostname()) {
				h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
				return
			}
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})

	// Run blocks until Stop.
	go router.Run()

	return router
}
