// Package config loads server.config, the flat key=value file that
// describes the vhost list, listen port, document root and optional
// privilege-drop target for the server.
package config

import (
	"strconv"
	"strings"

	"github.com/Unknwon/goconfig"
	"github.com/pkg/errors"
)

// Config is the parsed contents of server.config.
type Config struct {
	Port     int
	DiskPath string
	VHosts   []string
	DropUID  int
	DropGID  int
}

// defaultSection is the section goconfig uses for key=value pairs that
// appear before any [section] header, which is the only shape
// server.config ever takes.
const defaultSection = goconfig.DEFAULT_SECTION

// Load reads path and returns a validated Config.
func Load(path string) (*Config, error) {
	gc, err := goconfig.LoadConfigFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %q", path)
	}

	cfg := &Config{}

	vhost, err := gc.GetValue(defaultSection, "vhost")
	if err != nil || strings.TrimSpace(vhost) == "" {
		return nil, errors.New("config: \"vhost\" is required")
	}
	for _, alias := range strings.Split(vhost, ",") {
		alias = strings.TrimSpace(alias)
		if alias == "" {
			continue
		}
		cfg.VHosts = append(cfg.VHosts, alias)
	}
	if len(cfg.VHosts) == 0 {
		return nil, errors.New("config: \"vhost\" is required")
	}

	portStr, err := gc.GetValue(defaultSection, "port")
	if err != nil || strings.TrimSpace(portStr) == "" {
		return nil, errors.New("config: \"port\" is required")
	}
	port, err := strconv.Atoi(strings.TrimSpace(portStr))
	if err != nil {
		return nil, errors.Wrap(err, "config: \"port\" must be an integer")
	}
	cfg.Port = port

	diskpath, err := gc.GetValue(defaultSection, "diskpath")
	if err != nil || strings.TrimSpace(diskpath) == "" {
		return nil, errors.New("config: \"diskpath\" is required")
	}
	cfg.DiskPath = strings.TrimSpace(diskpath)

	uidStr, uidErr := gc.GetValue(defaultSection, "drop_uid")
	gidStr, gidErr := gc.GetValue(defaultSection, "drop_gid")
	haveUID := uidErr == nil && strings.TrimSpace(uidStr) != ""
	haveGID := gidErr == nil && strings.TrimSpace(gidStr) != ""
	if haveUID != haveGID {
		return nil, errors.New("config: \"drop_uid\" and \"drop_gid\" must both be set or both be absent")
	}
	if haveUID {
		uid, err := strconv.Atoi(strings.TrimSpace(uidStr))
		if err != nil {
			return nil, errors.Wrap(err, "config: \"drop_uid\" must be an integer")
		}
		gid, err := strconv.Atoi(strings.TrimSpace(gidStr))
		if err != nil {
			return nil, errors.Wrap(err, "config: \"drop_gid\" must be an integer")
		}
		if uid <= 0 || gid <= 0 {
			return nil, errors.New("config: \"drop_uid\" and \"drop_gid\" must both be > 0")
		}
		cfg.DropUID = uid
		cfg.DropGID = gid
	}

	return cfg, nil
}
