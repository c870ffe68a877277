package turnserver

import (
	"net"
	"testing"

	"github.com/pion/turn/v4"
	"github.com/stretchr/testify/require"

	"ws-class-server/pkg/config"
	"ws-class-server/pkg/logger"
	"ws-class-server/pkg/types"
)

func turnConfig(t *testing.T) *config.Config {
	conf := config.DefaultConfig
	conf.RTC.AnnouncedIP = "127.0.0.1"
	conf.TURN = config.TURNConfig{
		Enabled:  true,
		UDPPort:  freeUDPPort(t),
		Realm:    "class",
		Username: "user",
		Password: "pass",
	}
	return &conf
}

func freeUDPPort(t *testing.T) int {
	conn, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)
	port := conn.LocalAddr().(*net.UDPAddr).Port
	require.NoError(t, conn.Close())
	return port
}

func TestDisabled(t *testing.T) {
	conf := config.DefaultConfig
	server, err := NewTurnServer(&conf, logger.Nop())
	require.NoError(t, err)
	require.Nil(t, server)
}

func TestValidation(t *testing.T) {
	conf := turnConfig(t)
	conf.RTC.AnnouncedIP = ""
	_, err := NewTurnServer(conf, logger.Nop())
	require.ErrorIs(t, err, ErrNoRelayAddress)

	conf = turnConfig(t)
	conf.TURN.UDPPort = 0
	_, err = NewTurnServer(conf, logger.Nop())
	require.ErrorIs(t, err, ErrInvalidPort)

	conf = turnConfig(t)
	conf.TURN.Password = ""
	_, err = NewTurnServer(conf, logger.Nop())
	require.ErrorIs(t, err, ErrMissingUsername)
}

func TestStartAndClose(t *testing.T) {
	server, err := NewTurnServer(turnConfig(t), logger.Nop())
	require.NoError(t, err)
	require.NotNil(t, server)
	require.NoError(t, server.Close())
}

func TestAuthHandler(t *testing.T) {
	conf := turnConfig(t).TURN
	handle := authHandler(conf)

	key, ok := handle("user", "class", &net.UDPAddr{})
	require.True(t, ok)
	require.Equal(t, turn.GenerateAuthKey("user", "class", "pass"), key)

	_, ok = handle("intruder", "class", &net.UDPAddr{})
	require.False(t, ok)
}

func TestClientICEServers(t *testing.T) {
	conf := turnConfig(t)
	conf.TURN.UDPPort = 3478
	conf.RTC.AnnouncedIP = "203.0.113.7"
	require.Equal(t, []types.IceServer{
		{URLs: conf.RTC.STUNServers},
		{URLs: []string{"turn:203.0.113.7:3478?transport=udp"}, Username: "user", Credential: "pass"},
	}, ClientICEServers(conf))

	conf.TURN.Enabled = false
	require.Equal(t, []types.IceServer{{URLs: conf.RTC.STUNServers}}, ClientICEServers(conf))

	conf.RTC.STUNServers = nil
	require.Empty(t, ClientICEServers(conf))
}
