package protocol

// State is one of the four protocol states a session moves through:
// Handshaking, Status, Login, Play.
type State int32

const (
	Handshaking State = iota
	Status
	Login
	Play

	numStates = int(Play) + 1
)

// String names a State for logging.
func (s State) String() string {
	switch s {
	case Handshaking:
		return "handshaking"
	case Status:
		return "status"
	case Login:
		return "login"
	case Play:
		return "play"
	default:
		return "unknown"
	}
}

// Packet is a decoded wire packet: its ID (within its state and
// direction) and an Encode method producing the wire form of its body
// (not including the length prefix, which framing adds separately).
type Packet interface {
	ID() int32
	Encode(w *Writer)
}

// Serverbound handshake, the only packet legal in Handshaking.
const PacketIDHandshake = 0x00

type Handshake struct {
	ProtocolVersion int32
	ServerAddress   string
	ServerPort      uint16
	NextState       State
}

func (p *Handshake) ID() int32 { return PacketIDHandshake }

func (p *Handshake) Encode(w *Writer) {
	w.VarInt(p.ProtocolVersion)
	w.String(p.ServerAddress)
	w.Int16(int16(p.ServerPort))
	w.VarInt(int32(p.NextState))
}

// DecodeHandshake parses a Handshake body.
func DecodeHandshake(r *Reader) (*Handshake, error) {
	var p Handshake
	var err error
	if p.ProtocolVersion, err = r.VarInt(); err != nil {
		return nil, err
	}
	if p.ServerAddress, err = r.String(); err != nil {
		return nil, err
	}
	port, err := r.Int16()
	if err != nil {
		return nil, err
	}
	p.ServerPort = uint16(port)
	next, err := r.VarInt()
	if err != nil {
		return nil, err
	}
	p.NextState = State(next)
	return &p, nil
}

// Status state.

const (
	PacketIDStatusRequest  = 0x00
	PacketIDStatusResponse = 0x00
	PacketIDPingRequest    = 0x01
	PacketIDPingResponse   = 0x01
)

type StatusRequest struct{}

func (p *StatusRequest) ID() int32      { return PacketIDStatusRequest }
func (p *StatusRequest) Encode(*Writer) {}

func DecodeStatusRequest(*Reader) (*StatusRequest, error) { return &StatusRequest{}, nil }

// StatusResponse carries the raw JSON server-status document.
type StatusResponse struct {
	JSON string
}

func (p *StatusResponse) ID() int32 { return PacketIDStatusResponse }
func (p *StatusResponse) Encode(w *Writer) {
	w.String(p.JSON)
}

// Ping carries an opaque echo token shared by PingRequest and
// PingResponse, which are wire-identical.
type Ping struct {
	Payload int64
}

func (p *Ping) ID() int32 { return PacketIDPingRequest }
func (p *Ping) Encode(w *Writer) {
	w.Int64(p.Payload)
}

func DecodePing(r *Reader) (*Ping, error) {
	v, err := r.Int64()
	if err != nil {
		return nil, err
	}
	return &Ping{Payload: v}, nil
}

// Login state.

const (
	PacketIDLoginStart         = 0x00
	PacketIDEncryptionRequest  = 0x01
	PacketIDLoginSuccess       = 0x02
	PacketIDEncryptionResponse = 0x01
	PacketIDDisconnectLogin    = 0x00
)

type LoginStart struct {
	Username string
}

func (p *LoginStart) ID() int32      { return PacketIDLoginStart }
func (p *LoginStart) Encode(*Writer) {}

func DecodeLoginStart(r *Reader) (*LoginStart, error) {
	name, err := r.String()
	if err != nil {
		return nil, err
	}
	return &LoginStart{Username: name}, nil
}

type EncryptionRequest struct {
	ServerID    string
	PublicKey   []byte
	VerifyToken []byte
}

func (p *EncryptionRequest) ID() int32 { return PacketIDEncryptionRequest }
func (p *EncryptionRequest) Encode(w *Writer) {
	w.String(p.ServerID)
	w.ByteArray(p.PublicKey)
	w.ByteArray(p.VerifyToken)
}

type EncryptionResponse struct {
	SharedSecret []byte
	VerifyToken  []byte
}

func (p *EncryptionResponse) ID() int32      { return PacketIDEncryptionResponse }
func (p *EncryptionResponse) Encode(*Writer) {}

func DecodeEncryptionResponse(r *Reader) (*EncryptionResponse, error) {
	secret, err := r.ByteArray()
	if err != nil {
		return nil, err
	}
	token, err := r.ByteArray()
	if err != nil {
		return nil, err
	}
	return &EncryptionResponse{SharedSecret: secret, VerifyToken: token}, nil
}

type LoginSuccess struct {
	UUID     string
	Username string
}

func (p *LoginSuccess) ID() int32 { return PacketIDLoginSuccess }
func (p *LoginSuccess) Encode(w *Writer) {
	w.String(p.UUID)
	w.String(p.Username)
}

// DisconnectLogin carries a JSON chat-component reason, sent while still
// in the Login state (distinct ID space from the Play-state Disconnect).
type DisconnectLogin struct {
	Reason string
}

func (p *DisconnectLogin) ID() int32 { return PacketIDDisconnectLogin }
func (p *DisconnectLogin) Encode(w *Writer) {
	w.String(p.Reason)
}

// Play state.

const (
	PacketIDKeepAliveClientbound = 0x1F
	PacketIDKeepAliveServerbound = 0x0B
	PacketIDBlockChange          = 0x0B
	PacketIDDisconnectPlay       = 0x1A
)

type KeepAlive struct {
	ID64 int64
}

func (p *KeepAlive) ID() int32 { return PacketIDKeepAliveClientbound }
func (p *KeepAlive) Encode(w *Writer) {
	w.Int64(p.ID64)
}

func DecodeKeepAlive(r *Reader) (*KeepAlive, error) {
	v, err := r.Int64()
	if err != nil {
		return nil, err
	}
	return &KeepAlive{ID64: v}, nil
}

// BlockChange announces a single block mutation to subscribed clients.
// The position is packed the way the wire protocol packs it: a single
// int64 combining X (26 bits), Z (26 bits), and Y (12 bits).
type BlockChange struct {
	X, Y, Z   int32
	BlockID   int32 // packed type<<4 | metadata, as the wire protocol expects
}

func (p *BlockChange) ID() int32 { return PacketIDBlockChange }
func (p *BlockChange) Encode(w *Writer) {
	packed := (int64(p.X&0x3FFFFFF) << 38) | (int64(p.Z&0x3FFFFFF) << 12) | int64(p.Y&0xFFF)
	w.Int64(packed)
	w.VarInt(p.BlockID)
}

// Disconnect carries a JSON chat-component reason in the Play state.
type Disconnect struct {
	Reason string
}

func (p *Disconnect) ID() int32 { return PacketIDDisconnectPlay }
func (p *Disconnect) Encode(w *Writer) {
	w.String(p.Reason)
}
