package device

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"

	"github.com/ua-parser/uap-go/uaparser"
)

const fingerprintLen = 32

// Fingerprint derives the stable device ID for info.
func Fingerprint(info Info) string {
	parts := []string{
		strings.ToLower(strings.TrimSpace(info.Browser)),
		strings.ToLower(strings.TrimSpace(info.OS)),
		strings.ToLower(strings.TrimSpace(info.DeviceType)),
		strings.ToLower(strings.TrimSpace(info.Vendor)),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])[:fingerprintLen]
}

var uaParser = sync.OnceValue(func() *uaparser.Parser { return uaparser.NewFromSaved() })

// browserFamilies folds platform variants of a browser into one family.
var browserFamilies = map[string]string{
	"Mobile Safari":              "Safari",
	"Mobile Safari UI/WKWebView": "Safari",
	"Chrome Mobile":              "Chrome",
	"Chrome Mobile iOS":          "Chrome",
	"Chrome Mobile WebView":      "Chrome",
	"Firefox Mobile":             "Firefox",
	"Firefox iOS":                "Firefox",
	"Edge Mobile":                "Edge",
	"Opera Mobile":               "Opera",
	"IE":                         "Internet Explorer",
	"IE Mobile":                  "Internet Explorer",
}

var osFamilies = map[string]string{
	"Mac OS X": "macOS",
}

// placeholderBrands are what the parser reports when it knows no vendor.
var placeholderBrands = map[string]bool{
	"Generic":         true,
	"Generic_Android": true,
	"Generic_Inettv":  true,
	"Spider":          true,
}

const (
	unknown = "Unknown"
	other   = "Other"
)

// ParseUserAgent classifies a User-Agent header into the coarse fields the
// fingerprint uses. Only families are kept; versions never reach the hash.
func ParseUserAgent(ua string) Info {
	if ua == "" {
		return Info{Browser: unknown, OS: unknown, DeviceType: unknown}
	}

	c := uaParser().Parse(ua)
	osName := osFamily(c.Os.Family)
	return Info{
		Browser:    family(c.UserAgent.Family, browserFamilies),
		OS:         osName,
		DeviceType: deviceType(ua, c.Device.Family, osName),
		Vendor:     vendor(c.Device.Brand, osName),
		UserAgent:  ua,
	}
}

func family(name string, folds map[string]string) string {
	if name == "" || name == other {
		return unknown
	}
	if folded, ok := folds[name]; ok {
		return folded
	}
	return name
}

func osFamily(name string) string {
	// "Windows 10", "Windows 7" and friends are one family.
	if strings.HasPrefix(name, "Windows") && name != "Windows Phone" {
		return "Windows"
	}
	return family(name, osFamilies)
}

func vendor(brand, osName string) string {
	if brand != "" && !placeholderBrands[brand] {
		return brand
	}
	if osName == "macOS" || osName == "iOS" {
		return "Apple"
	}
	return ""
}

func deviceType(ua, deviceFamily, osName string) string {
	switch {
	case deviceFamily == "Spider":
		return "bot"
	case strings.Contains(deviceFamily, "iPad") || strings.Contains(strings.ToLower(ua), "tablet"):
		return "tablet"
	case osName == "Android" && !strings.Contains(ua, "Mobile"):
		return "tablet"
	case strings.Contains(ua, "Mobi") || osName == "iOS" || osName == "Android":
		return "mobile"
	default:
		return "desktop"
	}
}
