// Package media implements negotiation sessions on top of pion/webrtc and
// feeds them with audio and video read from disk.
package media

import (
	"errors"
	"fmt"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/interceptor/pkg/intervalpli"
	"github.com/pion/webrtc/v4"
	"github.com/sirupsen/logrus"

	"github.com/krishangoyal12/Video-Chat-Application/internal/mesh"
)

// ICEOptions select the servers and policy used to find a path to peers.
type ICEOptions struct {
	STUN []string

	TURN     []string
	TURNUser string
	TURNPass string

	// ForceRelay only uses TURN candidates.
	ForceRelay bool

	// AutoRelay enables ForceRelay when TURN is configured and the host
	// looks like it sits behind a VPN or CGNAT.
	AutoRelay bool

	// CandidatePoolSize pre-gathers candidates before an offer is made.
	CandidatePoolSize uint8

	// PLIInterval is how often keyframes are requested from remote video.
	PLIInterval time.Duration
}

// Engine builds sessions that share a codec and interceptor setup.
type Engine struct {
	api    *webrtc.API
	config webrtc.Configuration
	log    *logrus.Entry
}

// NewEngine registers the default codecs and interceptors and resolves the
// ICE configuration.
func NewEngine(opts ICEOptions, logger *logrus.Entry) (*Engine, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}

	registry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, registry); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}

	if opts.PLIInterval > 0 {
		pli, err := intervalpli.NewReceiverInterceptor(intervalpli.GeneratorInterval(opts.PLIInterval))
		if err != nil {
			return nil, fmt.Errorf("create pli interceptor: %w", err)
		}
		registry.Add(pli)
	}

	config, err := configuration(opts, ShouldForceRelay)
	if err != nil {
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"ice_servers": len(config.ICEServers),
		"relay_only":  config.ICETransportPolicy == webrtc.ICETransportPolicyRelay,
	}).Debug("media engine ready")

	return &Engine{
		api:    webrtc.NewAPI(webrtc.WithMediaEngine(m), webrtc.WithInterceptorRegistry(registry)),
		config: config,
		log:    logger,
	}, nil
}

func configuration(opts ICEOptions, restrictiveNetwork func() bool) (webrtc.Configuration, error) {
	var servers []webrtc.ICEServer
	if len(opts.STUN) > 0 {
		servers = append(servers, webrtc.ICEServer{URLs: opts.STUN})
	}
	if len(opts.TURN) > 0 {
		servers = append(servers, webrtc.ICEServer{
			URLs:       opts.TURN,
			Username:   opts.TURNUser,
			Credential: opts.TURNPass,
		})
	}

	relay := opts.ForceRelay
	if !relay && opts.AutoRelay && len(opts.TURN) > 0 {
		relay = restrictiveNetwork()
	}
	if relay && len(opts.TURN) == 0 {
		return webrtc.Configuration{}, errors.New("cannot force relay mode without TURN server configured")
	}

	config := webrtc.Configuration{
		ICEServers:           servers,
		ICECandidatePoolSize: opts.CandidatePoolSize,
	}
	if relay {
		config.ICETransportPolicy = webrtc.ICETransportPolicyRelay
	}
	return config, nil
}

// NewSession is a mesh.SessionFactory.
func (e *Engine) NewSession(remoteID string, events mesh.SessionEvents) (mesh.MediaSession, error) {
	return newSession(e, remoteID, events)
}
