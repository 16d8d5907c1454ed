// Package dashboard projects the daemon property bag into the active
// network configuration and key material shown on the console.
package dashboard

import (
	"encoding/base64"
	"fmt"
	"strings"

	"wsbr-console/models"
	"wsbr-console/source"
	"wsbr-console/topology"
)

// ActiveConfig is the running network configuration. FAN 1.0 networks
// report Class/Mode, FAN 1.1 networks (class 0) a channel plan and PHY mode.
type ActiveConfig struct {
	NetworkName string `json:"networkName"`
	Domain      string `json:"domain"`
	PanID       string `json:"panId"`
	Size        string `json:"size"`
	FAN         string `json:"fan"`
	Class       int    `json:"class,omitempty"`
	Mode        string `json:"mode,omitempty"`
	ChanPlanID  int    `json:"chanPlanId,omitempty"`
	PhyModeID   int    `json:"phyModeId,omitempty"`
}

type Key struct {
	Index int    `json:"index"`
	Hex   string `json:"hex"`
}

// Keys holds the group transient keys and the group AES keys derived from them.
type Keys struct {
	GTKs []Key `json:"gtks"`
	GAKs []Key `json:"gaks"`
}

// Config reads the active configuration out of props.
func Config(props models.Properties) (*ActiveConfig, error) {
	if !props.Ready() {
		return nil, source.ErrNotReady
	}
	cfg := &ActiveConfig{
		NetworkName: stringProp(props, models.PropNetworkName),
		Domain:      stringProp(props, models.PropDomain),
		Size:        strings.ToUpper(stringProp(props, models.PropSize)),
	}
	if pan, ok := numberProp(props, models.PropPanID); ok {
		cfg.PanID = fmt.Sprintf("0x%X", pan)
	}

	class, _ := numberProp(props, models.PropClass)
	if class == 0 {
		cfg.FAN = "1.1"
		cfg.ChanPlanID, _ = numberProp(props, models.PropChanPlanID)
		cfg.PhyModeID, _ = numberProp(props, models.PropPhyModeID)
	} else {
		cfg.FAN = "1.0"
		cfg.Class = class
		mode, _ := numberProp(props, models.PropWisunMode)
		cfg.Mode = fmt.Sprintf("0x%X", mode)
	}
	return cfg, nil
}

// KeyMaterial decodes the base64 key arrays in props.
func KeyMaterial(props models.Properties) (*Keys, error) {
	if !props.Ready() {
		return nil, source.ErrNotReady
	}
	gtks, err := decodeKeys(props[models.PropGtks])
	if err != nil {
		return nil, fmt.Errorf("gtks: %w", err)
	}
	gaks, err := decodeKeys(props[models.PropGaks])
	if err != nil {
		return nil, fmt.Errorf("gaks: %w", err)
	}
	return &Keys{GTKs: gtks, GAKs: gaks}, nil
}

func decodeKeys(v any) ([]Key, error) {
	keys := []Key{}
	if v == nil {
		return keys, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected array, got %T", source.ErrSourceInvalid, v)
	}
	for i, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("%w: key %d is %T", source.ErrSourceInvalid, i, item)
		}
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("%w: key %d: %v", source.ErrSourceInvalid, i, err)
		}
		keys = append(keys, Key{Index: i, Hex: topology.FormatHexKey(b)})
	}
	return keys, nil
}

func stringProp(props models.Properties, name string) string {
	switch v := props[name].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func numberProp(props models.Properties, name string) (int, bool) {
	switch v := props[name].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	default:
		return 0, false
	}
}
