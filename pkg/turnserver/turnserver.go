package turnserver

import (
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/pion/turn/v4"
	"go.uber.org/zap"

	"ws-class-server/pkg/config"
	"ws-class-server/pkg/logger"
	"ws-class-server/pkg/types"
)

var (
	ErrInvalidPort     = errors.New("invalid TURN udp port")
	ErrNoRelayAddress  = errors.New("TURN needs rtc.announced_ip to hand out relay addresses")
	ErrMissingUsername = errors.New("TURN username and password are required")
)

// NewTurnServer starts the embedded TURN relay for clients behind
// restrictive NATs. It returns nil when TURN is disabled.
func NewTurnServer(conf *config.Config, log *zap.SugaredLogger) (*turn.Server, error) {
	turnConf := conf.TURN
	if !turnConf.Enabled {
		return nil, nil
	}
	if turnConf.UDPPort <= 0 {
		return nil, ErrInvalidPort
	}
	relayIP := net.ParseIP(conf.RTC.AnnouncedIP)
	if relayIP == nil {
		return nil, ErrNoRelayAddress
	}
	if turnConf.Username == "" || turnConf.Password == "" {
		return nil, ErrMissingUsername
	}

	udpListener, err := net.ListenPacket("udp4", "0.0.0.0:"+strconv.Itoa(turnConf.UDPPort))
	if err != nil {
		return nil, fmt.Errorf("could not listen on TURN UDP port: %w", err)
	}

	server, err := turn.NewServer(turn.ServerConfig{
		Realm:         turnConf.Realm,
		AuthHandler:   authHandler(turnConf),
		LoggerFactory: logger.NewPionLoggerFactory(log.Named("turn")),
		PacketConnConfigs: []turn.PacketConnConfig{
			{
				PacketConn: udpListener,
				RelayAddressGenerator: &turn.RelayAddressGeneratorStatic{
					RelayAddress: relayIP,
					Address:      "0.0.0.0",
				},
			},
		},
	})
	if err != nil {
		_ = udpListener.Close()
		return nil, err
	}

	log.Infow("starting TURN server", "turn.portUDP", turnConf.UDPPort, "turn.realm", turnConf.Realm, "turn.relayIP", relayIP)
	return server, nil
}

// ClientICEServers lists the servers clients should gather against: the
// configured STUN servers plus the embedded relay when it is enabled.
func ClientICEServers(conf *config.Config) []types.IceServer {
	var servers []types.IceServer
	if len(conf.RTC.STUNServers) > 0 {
		servers = append(servers, types.IceServer{URLs: conf.RTC.STUNServers})
	}
	turnConf := conf.TURN
	if turnConf.Enabled && turnConf.UDPPort > 0 && conf.RTC.AnnouncedIP != "" {
		servers = append(servers, types.IceServer{
			URLs: []string{fmt.Sprintf("turn:%s?transport=udp",
				net.JoinHostPort(conf.RTC.AnnouncedIP, strconv.Itoa(turnConf.UDPPort)))},
			Username:   turnConf.Username,
			Credential: turnConf.Password,
		})
	}
	return servers
}

// authHandler accepts the single configured long-term credential.
func authHandler(conf config.TURNConfig) turn.AuthHandler {
	key := turn.GenerateAuthKey(conf.Username, conf.Realm, conf.Password)
	return func(username, realm string, srcAddr net.Addr) ([]byte, bool) {
		if username != conf.Username {
			return nil, false
		}
		return key, true
	}
}
