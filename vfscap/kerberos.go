package vfscap

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jcmturner/gokrb5/v8/client"
	"github.com/jcmturner/gokrb5/v8/config"
	"github.com/jcmturner/gokrb5/v8/credentials"
)

// kerberosCache memoizes Kerberos clients by resolved ccache path so that
// every SMB connection in the pool shares one ticket cache instead of
// re-authenticating per dial.
var kerberosCache sync.Map // map[string]*client.Client

// NewKerberosClient loads (or reuses a cached) Kerberos client for the
// given ccache path, falling back to KRB5CCNAME/the user's default
// ccache when ccachePath is empty.
func NewKerberosClient(ccachePath string) (*client.Client, error) {
	resolved, err := resolveCcachePath(ccachePath)
	if err != nil {
		return nil, err
	}
	if cl, ok := kerberosCache.Load(resolved); ok {
		return cl.(*client.Client), nil
	}

	cfg, err := loadKerberosConfig()
	if err != nil {
		return nil, err
	}
	ccache, err := credentials.LoadCCache(resolved)
	if err != nil {
		return nil, err
	}
	cl, err := client.NewFromCCache(ccache, cfg)
	if err != nil {
		return nil, err
	}
	kerberosCache.Store(resolved, cl)
	return cl, nil
}

// resolveCcachePath turns a KRB5CCNAME-style reference into a concrete
// ticket cache file path. KRB5CCNAME supports a handful of resolver
// types distinguished by a "TYPE:value" prefix; unprefixed values and
// the empty string fall back to the usual MIT-krb5 defaults.
func resolveCcachePath(ccachePath string) (string, error) {
	if ccachePath == "" {
		ccachePath = os.Getenv("KRB5CCNAME")
	}
	if ccachePath == "" {
		return defaultCcachePath()
	}

	typ, value, hasPrefix := strings.Cut(ccachePath, ":")
	if !hasPrefix {
		return ccachePath, nil
	}
	switch typ {
	case "FILE":
		return value, nil
	case "DIR":
		return dirCachePrimary(value)
	default:
		return "", fmt.Errorf("unsupported KRB5CCNAME resolver %q in %q", typ, ccachePath)
	}
}

// dirCachePrimary reads a DIR: collection's "primary" pointer file to
// find which ccache within dir is currently active.
func dirCachePrimary(dir string) (string, error) {
	primary, err := os.ReadFile(filepath.Join(dir, "primary"))
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, strings.TrimSpace(string(primary))), nil
}

// defaultCcachePath mirrors MIT krb5's fallback when KRB5CCNAME is unset
// entirely: a per-uid file under /tmp.
func defaultCcachePath() (string, error) {
	u, err := user.Current()
	if err != nil {
		return "", err
	}
	return "/tmp/krb5cc_" + u.Uid, nil
}

func loadKerberosConfig() (*config.Config, error) {
	cfgPath := os.Getenv("KRB5_CONFIG")
	if cfgPath == "" {
		cfgPath = "/etc/krb5.conf"
	}
	return config.Load(cfgPath)
}
