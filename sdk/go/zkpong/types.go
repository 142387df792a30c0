package zkpong

// Session statuses reported by the API.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Entry is one recorded game tick in the proof input wire format.
type Entry struct {
	GameTick         int  `json:"game_tick"`
	BallX            int  `json:"ball_x"`
	BallY            int  `json:"ball_y"`
	BallDX           int  `json:"ball_dx"`
	BallDY           int  `json:"ball_dy"`
	LeftPaddleX      int  `json:"leftPaddle_x"`
	LeftPaddleY      int  `json:"leftPaddle_y"`
	LeftPaddleDY     int  `json:"leftPaddle_dy"`
	LeftPaddleScore  int  `json:"leftPaddle_score"`
	RightPaddleX     int  `json:"rightPaddle_x"`
	RightPaddleY     int  `json:"rightPaddle_y"`
	RightPaddleDY    int  `json:"rightPaddle_dy"`
	RightPaddleScore int  `json:"rightPaddle_score"`
	LeftPaddleWon    bool `json:"leftPaddle_won"`
	RightPaddleWon   bool `json:"rightPaddle_won"`
	IsFirstPlayer    bool `json:"is_first_player"`
}

// ScriptedInput presses or releases a paddle key before the given tick is stepped.
// Side is "left" or "right"; Direction is "up", "down" or "stop".
type ScriptedInput struct {
	Tick      int    `json:"tick"`
	Side      string `json:"side"`
	Direction string `json:"direction"`
}

// SimulateRequest asks the daemon to run a headless game.
type SimulateRequest struct {
	ID       string          `json:"id,omitempty"`
	MaxTicks int             `json:"max_ticks,omitempty"`
	Script   []ScriptedInput `json:"script,omitempty"`
}

// SubmitRequest uploads a transcript recorded elsewhere.
type SubmitRequest struct {
	ID         string  `json:"id,omitempty"`
	Transcript []Entry `json:"transcript"`
}

// ProofResult describes a verified proof.
type ProofResult struct {
	Backend      string   `json:"backend"`
	Proof        []byte   `json:"proof"`
	PublicInputs []string `json:"public_inputs"`
	ChainID      string   `json:"chain_id,omitempty"`
	BlockNumber  string   `json:"block_number,omitempty"`
	VerifiedAt   int64    `json:"verified_at"`
}

// Session is the daemon's record of one game and its proof.
type Session struct {
	ID         string          `json:"id"`
	Status     string          `json:"status"`
	Source     string          `json:"source"`
	MaxTicks   int             `json:"max_ticks"`
	Script     []ScriptedInput `json:"script,omitempty"`
	Transcript []Entry         `json:"transcript"`
	Outcome    string          `json:"outcome"`
	Result     *ProofResult    `json:"result,omitempty"`
	LastError  string          `json:"last_error,omitempty"`
	ErrorCode  string          `json:"error_code,omitempty"`
	Attempts   int             `json:"attempts"`
	CreatedAt  int64           `json:"created_at"`
	UpdatedAt  int64           `json:"updated_at"`
}

// Finished reports whether the session reached a terminal status.
func (s Session) Finished() bool {
	return s.Status == StatusSucceeded || s.Status == StatusFailed
}

// PublicKey is a secp256k1 point with hex-encoded coordinates.
type PublicKey struct {
	X string `json:"x"`
	Y string `json:"y"`
}

// Move carries the paddle velocities of one tick.
type Move struct {
	LeftPaddleDY  int `json:"leftPaddle_dy"`
	RightPaddleDY int `json:"rightPaddle_dy"`
}

// Signature is a recoverable secp256k1 signature over one move.
type Signature struct {
	R string `json:"r"`
	S string `json:"s"`
	V int    `json:"v"`
}

// ProofInput is the exact structure handed to the prover.
type ProofInput struct {
	Index      int         `json:"index"`
	GameLog    []Entry     `json:"game_log"`
	GameMoves  []Move      `json:"game_moves"`
	Signatures []Signature `json:"signatures"`
	User1      PublicKey   `json:"user_1"`
	User2      PublicKey   `json:"user_2"`
}
