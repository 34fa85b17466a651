// Package client holds the shared outbound HTTP clients.
package client

import (
	"net/http"
	"net/url"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"

	"github.com/fuchsia74/grok-relay/common/config"
	"github.com/fuchsia74/grok-relay/common/logger"
)

// HTTPClient talks to the upstream conversation API. It carries no overall
// timeout because responses are long lived streams; callers bound them with
// a context instead.
var HTTPClient = &http.Client{}

// AssetHTTPClient downloads generated images and videos.
var AssetHTTPClient = &http.Client{Timeout: 2 * time.Minute}

// Init rebuilds both clients from the relay proxy configuration.
func Init() error {
	transport, err := newTransport(config.RelayProxy)
	if err != nil {
		return errors.Wrap(err, "build relay transport")
	}
	if config.RelayProxy != "" {
		logger.Logger.Info("using relay proxy", zap.String("proxy", redactProxy(config.RelayProxy)))
	}

	HTTPClient = &http.Client{Transport: transport}
	AssetHTTPClient = &http.Client{Transport: transport, Timeout: 2 * time.Minute}
	return nil
}

func newTransport(proxy string) (*http.Transport, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 32
	if proxy == "" {
		return transport, nil
	}

	proxyURL, err := url.Parse(proxy)
	if err != nil {
		return nil, errors.Wrapf(err, "parse proxy url")
	}
	if proxyURL.Scheme == "" || proxyURL.Host == "" {
		return nil, errors.Errorf("proxy url %q must include scheme and host", redactProxy(proxy))
	}
	transport.Proxy = http.ProxyURL(proxyURL)
	return transport, nil
}

func redactProxy(proxy string) string {
	u, err := url.Parse(proxy)
	if err != nil || u.User == nil {
		return proxy
	}
	return u.Redacted()
}
