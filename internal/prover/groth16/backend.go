package groth16

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"

	xerrors "ZKPong/internal/errors"
	"ZKPong/internal/pong"
	"ZKPong/internal/proofinput"
	"ZKPong/internal/prover"
	"ZKPong/pkg/logger"
)

// Name 是写入 Proof.Backend 的后端标识。
const Name = "groth16-bn254"

// publicInputCount = Commitment + 8 个密钥分段 + LeftWon + RightWon + FinalTick。
const publicInputCount = 12

type circuitKeys struct {
	ccs constraint.ConstraintSystem
	pk  groth16.ProvingKey
	vk  groth16.VerifyingKey
}

// 密钥目录下每个电路形状一个子目录，内含以下三个文件。
const (
	circuitFile   = "circuit.ccs"
	provingFile   = "proving.key"
	verifyingFile = "verifying.key"
)

// Backend 在本进程内完成 Groth16 证明与校验，按转录长度懒加载并缓存密钥。
// 配置了密钥目录时，首次 Setup 的结果写入磁盘，之后的进程直接加载同一组密钥。
type Backend struct {
	tuning  pong.Tuning
	keysDir string
	log     *slog.Logger

	mu   sync.Mutex
	keys map[int]*circuitKeys
}

// Option 定制 Backend。
type Option func(*Backend)

// WithKeysDir 设置持久化电路与密钥的目录。
func WithKeysDir(dir string) Option {
	return func(b *Backend) { b.keysDir = dir }
}

// New 创建使用给定场地参数的后端。
func New(t pong.Tuning, opts ...Option) *Backend {
	b := &Backend{
		tuning: t,
		log:    logger.Named("groth16"),
		keys:   make(map[int]*circuitKeys),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Backend) Name() string { return Name }

// KeysDir 返回持久化密钥的目录，未配置时为空。
func (b *Backend) KeysDir() string { return b.keysDir }

// keysFor 返回 n 条记录的电路密钥：依次查找内存缓存、密钥目录，都没有时执行 Setup。
func (b *Backend) keysFor(n int) (*circuitKeys, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if k, ok := b.keys[n]; ok {
		return k, nil
	}
	k, err := b.loadKeys(n)
	if err == nil {
		b.keys[n] = k
		return k, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	start := time.Now()
	shape := &EndgameCircuit{
		Entries:    make([]EntryVars, n),
		Wall:       b.tuning.Wall(),
		MaxPaddleY: b.tuning.MaxPaddleY(),
	}
	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, shape)
	if err != nil {
		return nil, fmt.Errorf("compile circuit: %w", err)
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, fmt.Errorf("groth16 setup: %w", err)
	}
	k = &circuitKeys{ccs: ccs, pk: pk, vk: vk}
	if b.keysDir != "" {
		stored, err := b.storeKeys(n, k)
		if err != nil {
			return nil, err
		}
		k = stored
	}
	b.keys[n] = k
	b.log.Info("circuit keys ready",
		"entries", n,
		"constraints", ccs.GetNbConstraints(),
		"duration", time.Since(start).String())
	return k, nil
}

// cachedKeys 只查找内存缓存与密钥目录，不会执行 Setup。
func (b *Backend) cachedKeys(n int) (*circuitKeys, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if k, ok := b.keys[n]; ok {
		return k, nil
	}
	k, err := b.loadKeys(n)
	if err != nil {
		return nil, err
	}
	b.keys[n] = k
	return k, nil
}

// shapeDir 返回 n 条记录的电路在密钥目录中的子目录，场地常量不同的电路互不复用。
func (b *Backend) shapeDir(n int) string {
	return filepath.Join(b.keysDir, fmt.Sprintf("endgame-w%d-p%d-n%d", b.tuning.Wall(), b.tuning.MaxPaddleY(), n))
}

func (b *Backend) loadKeys(n int) (*circuitKeys, error) {
	if b.keysDir == "" {
		return nil, os.ErrNotExist
	}
	dir := b.shapeDir(n)
	k := &circuitKeys{
		ccs: groth16.NewCS(ecc.BN254),
		pk:  groth16.NewProvingKey(ecc.BN254),
		vk:  groth16.NewVerifyingKey(ecc.BN254),
	}
	files := []struct {
		name string
		dst  io.ReaderFrom
	}{
		{circuitFile, k.ccs},
		{provingFile, k.pk},
		{verifyingFile, k.vk},
	}
	for _, f := range files {
		if err := readFrom(filepath.Join(dir, f.name), f.dst); err != nil {
			return nil, err
		}
	}
	b.log.Debug("circuit keys loaded", "entries", n, "dir", dir)
	return k, nil
}

// storeKeys 先把三个文件写入临时目录再整体改名，避免其他进程读到不完整的一组密钥。
// 若另一个进程抢先写入了同一形状，丢弃本次结果并改用磁盘上的密钥。
func (b *Backend) storeKeys(n int, k *circuitKeys) (*circuitKeys, error) {
	if err := os.MkdirAll(b.keysDir, 0o755); err != nil {
		return nil, fmt.Errorf("create keys dir: %w", err)
	}
	tmp, err := os.MkdirTemp(b.keysDir, ".endgame-*")
	if err != nil {
		return nil, fmt.Errorf("create keys dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	files := []struct {
		name string
		src  io.WriterTo
	}{
		{circuitFile, k.ccs},
		{provingFile, k.pk},
		{verifyingFile, k.vk},
	}
	for _, f := range files {
		if err := writeTo(filepath.Join(tmp, f.name), f.src); err != nil {
			return nil, err
		}
	}

	dir := b.shapeDir(n)
	if err := os.Rename(tmp, dir); err != nil {
		if existing, loadErr := b.loadKeys(n); loadErr == nil {
			return existing, nil
		}
		return nil, fmt.Errorf("store circuit keys: %w", err)
	}
	b.log.Info("circuit keys stored", "entries", n, "dir", dir)
	return k, nil
}

func readFrom(path string, dst io.ReaderFrom) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := dst.ReadFrom(bufio.NewReader(f)); err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return nil
}

func writeTo(path string, src io.WriterTo) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if _, err := src.WriteTo(w); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// GenerateProof 为证明输入生成 Groth16 证明。见证不满足约束时返回 PROVER_FAILURE。
func (b *Backend) GenerateProof(ctx context.Context, input *proofinput.ProofInput) (*prover.Proof, error) {
	if input == nil || len(input.GameLog) == 0 {
		return nil, xerrors.New(xerrors.CodeProverFailure, "game log is empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeTimeout, err, "")
	}

	assignment, public, err := assign(input, b.tuning)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeProverFailure, err, "build witness")
	}
	keys, err := b.keysFor(len(input.GameLog))
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeProverFailure, err, "")
	}

	w, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeProverFailure, err, "encode witness")
	}
	proof, err := groth16.Prove(keys.ccs, keys.pk, w)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeProverFailure, err, "")
	}

	var buf bytes.Buffer
	if _, err := proof.WriteTo(&buf); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeProverFailure, err, "serialise proof")
	}
	return &prover.Proof{Backend: Name, Proof: buf.Bytes(), PublicInputs: public}, nil
}

// VerifyProof 校验证明。公开输入被篡改时返回 false 且 err 为 nil。
func (b *Backend) VerifyProof(ctx context.Context, p *prover.Proof) (bool, error) {
	if p == nil {
		return false, fmt.Errorf("nil proof")
	}
	if p.Backend != Name {
		return false, fmt.Errorf("proof backend %q is not %q", p.Backend, Name)
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	values, err := parsePublic(p.PublicInputs)
	if err != nil {
		return false, err
	}
	finalTick := values[publicInputCount-1]
	if !finalTick.IsInt64() || finalTick.Int64() >= 1<<20 {
		return false, fmt.Errorf("final tick %s out of range", finalTick)
	}
	n := int(finalTick.Int64()) + 1

	keys, err := b.cachedKeys(n)
	if errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("no verifying key for %d entries", n)
	}
	if err != nil {
		return false, err
	}

	publicOnly := &EndgameCircuit{
		Commitment: values[0],
		LeftWon:    values[9],
		RightWon:   values[10],
		FinalTick:  values[11],
		Entries:    make([]EntryVars, n),
	}
	for i := range publicOnly.Keys {
		publicOnly.Keys[i] = values[1+i]
	}
	pw, err := frontend.NewWitness(publicOnly, ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return false, fmt.Errorf("encode public witness: %w", err)
	}

	proof := groth16.NewProof(ecc.BN254)
	if _, err := proof.ReadFrom(bytes.NewReader(p.Proof)); err != nil {
		return false, fmt.Errorf("decode proof: %w", err)
	}
	if err := groth16.Verify(proof, keys.vk, pw); err != nil {
		b.log.Debug("proof rejected", "error", err)
		return false, nil
	}
	return true, nil
}

// ExportSolidity 写出长度为 n 的转录对应的 Solidity 校验合约。
func (b *Backend) ExportSolidity(n int, w io.Writer) error {
	if n <= 0 {
		return fmt.Errorf("entries must be positive, got %d", n)
	}
	keys, err := b.keysFor(n)
	if err != nil {
		return err
	}
	return keys.vk.ExportSolidity(w)
}

func assign(input *proofinput.ProofInput, t pong.Tuning) (*EndgameCircuit, []string, error) {
	commitment, err := Commit(input)
	if err != nil {
		return nil, nil, err
	}
	limbs, err := keyLimbs(input.User1, input.User2)
	if err != nil {
		return nil, nil, err
	}

	final := input.GameLog[len(input.GameLog)-1]
	c := &EndgameCircuit{
		Commitment: commitment.String(),
		LeftWon:    flag(final.LeftPaddleWon),
		RightWon:   flag(final.RightPaddleWon),
		FinalTick:  final.GameTick,
		Entries:    make([]EntryVars, len(input.GameLog)),
		Wall:       t.Wall(),
		MaxPaddleY: t.MaxPaddleY(),
	}
	public := make([]string, 0, publicInputCount)
	public = append(public, commitment.String())
	for i, l := range limbs {
		c.Keys[i] = l
		public = append(public, l.String())
	}
	public = append(public,
		fmt.Sprint(flag(final.LeftPaddleWon)),
		fmt.Sprint(flag(final.RightPaddleWon)),
		fmt.Sprint(final.GameTick))

	for i, e := range input.GameLog {
		f := entryFields(e)
		c.Entries[i] = EntryVars{
			Tick: f[0], BallX: f[1], BallY: f[2], BallDX: f[3], BallDY: f[4],
			LeftX: f[5], LeftY: f[6], LeftDY: f[7], LeftScore: f[8],
			RightX: f[9], RightY: f[10], RightDY: f[11], RightScore: f[12],
			LeftWon: f[13], RightWon: f[14], IsFirstPlayer: f[15],
		}
	}
	return c, public, nil
}

func parsePublic(in []string) ([]*big.Int, error) {
	if len(in) != publicInputCount {
		return nil, fmt.Errorf("got %d public inputs, want %d", len(in), publicInputCount)
	}
	out := make([]*big.Int, len(in))
	for i, s := range in {
		v, ok := new(big.Int).SetString(s, 10)
		if !ok || v.Sign() < 0 {
			return nil, fmt.Errorf("public input %d (%q) is not a field element", i, s)
		}
		out[i] = v
	}
	return out, nil
}
