// Package voxlink implements the realtime session protocol spoken by the
// VoxPal character backend: a persistent, bidirectional, message-oriented
// channel layered on a raw text socket.
//
// The wire protocol has two layers. A transport-keepalive layer uses short
// numeric tokens ("0" open, "2" ping, "3" pong). An event-multiplexing layer
// joins a namespace on the same connection ("40"/"41"/"44") and carries
// application events as "42<namespace>,[eventName, payload]" JSON frames.
// No client library for this stack exists on the embedded targets we care
// about, so the minimum subset is reimplemented here: handshake sequencing,
// keepalive, event framing, and bounded reconnection.
//
// Outbound frames pass through a paced send queue. The host socket primitive
// on embedded targets coalesces rapid consecutive writes into one packet,
// corrupting frame boundaries, so the engine never transmits more than one
// frame per tick and enforces a minimum gap between writes.
//
// The engine has no internal clock. The caller must invoke Tick on a steady
// cadence (tens of milliseconds); pacing and the handshake watchdog are only
// as precise as that cadence. Run is a convenience loop that drives Tick
// from a time.Ticker.
//
// Example usage:
//
//	client := voxlink.New()
//	client.Subscribe(voxlink.KindBotResponse, func(ev *voxlink.Event) {
//	    fmt.Println(ev.BotResponse.Text)
//	})
//	err := client.Connect("wss://chat.voxpal.dev/link", voxlink.Credentials{
//	    APIKey:      key,
//	    CharacterID: "char_milo",
//	    PlayerID:    "player_1",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	go client.Run(ctx, 20*time.Millisecond)
//	client.SendText("hello")
package voxlink
