package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/uhyunpark/fermitrade/params"
	"github.com/uhyunpark/fermitrade/pkg/crypto"
	"github.com/uhyunpark/fermitrade/pkg/transaction"
	"github.com/uhyunpark/fermitrade/pkg/types"
	"github.com/uhyunpark/fermitrade/pkg/util"
)

func fail(step string, err error) {
	fmt.Printf("Error %s: %v\n", step, err)
	os.Exit(1)
}

func main() {
	cfg, err := params.LoadFromEnv("")
	if err != nil {
		fail("loading config", err)
	}

	// Step 1: Load key from FERMI_KEYPAIR_PATH or generate one
	var kp *crypto.TradingKeypair
	if cfg.KeypairPath != "" {
		fmt.Printf("Loading keypair from %s...\n", cfg.KeypairPath)
		kp, err = crypto.KeypairFromFile(cfg.KeypairPath)
	} else {
		fmt.Println("Generating new keypair...")
		kp, err = crypto.GenerateKeypair()
	}
	if err != nil {
		fail("loading keypair", err)
	}
	fmt.Printf("Pubkey: %s\n\n", kp.PubkeyString())

	signer := crypto.NewDigestSigner(kp, nil)
	baseMint := types.MustParsePubkey(types.TestnetSOL)
	quoteMint := types.MustParsePubkey(types.TestnetUSDC)

	// Step 2: Sign the sample order (1 SOL at 185.50, 10x)
	order, err := transaction.SignPerpOrder(signer, transaction.PerpOrderParams{
		OrderID:        12345,
		Side:           types.Buy,
		Price:          185_500_000,
		Quantity:       1_000_000_000,
		Expiry:         1_700_000_000,
		BaseMint:       baseMint,
		QuoteMint:      quoteMint,
		Leverage:       10,
		PositionEffect: types.Open,
		MarginMode:     types.Cross,
		MarginAmount:   types.Some[uint64](18_550_000),
	})
	if err != nil {
		fail("signing order", err)
	}

	fmt.Println("Order Details:")
	fmt.Printf("  Order ID: %d\n", order.Intent.OrderID)
	fmt.Printf("  Side: %s\n", order.Intent.Side)
	fmt.Printf("  Price: %d\n", order.Intent.Price)
	fmt.Printf("  Quantity: %d\n", order.Intent.Quantity)
	fmt.Printf("  Leverage: %dx\n\n", order.Intent.Leverage.OrElse(0))

	// Step 3: Sign the matching cancel
	cancel, err := transaction.SignCancel(signer, order.OrderID, baseMint, quoteMint)
	if err != nil {
		fail("signing cancel", err)
	}

	// Step 4: Wrap both in envelopes
	builder := transaction.NewBuilder(util.RealClock{}, nil)
	orderEnv, err := builder.BuildOrder(order)
	if err != nil {
		fail("building order envelope", err)
	}
	cancelEnv, err := builder.BuildCancel(cancel)
	if err != nil {
		fail("building cancel envelope", err)
	}

	printRequest("Signed Order (JSON):", order.Request)
	printEnvelope(orderEnv)
	printRequest("Signed Cancel (JSON):", cancel.Request)
	printEnvelope(cancelEnv)

	// Step 5: Verify the signatures as a receiver would, from the wire JSON
	fmt.Println("Verifying signatures...")
	verifier := transaction.NewVerifier()

	orderJSON, err := order.JSON()
	if err != nil {
		fail("encoding order", err)
	}
	orderReq, err := transaction.ParseOrderRequest(orderJSON)
	if err != nil {
		fail("parsing order", err)
	}
	if _, ok, err := verifier.VerifyOrderRequest(orderReq); !ok {
		fmt.Printf("✗ Order signature INVALID: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("✓ Order signature VALID")

	cancelJSON, err := cancel.JSON()
	if err != nil {
		fail("encoding cancel", err)
	}
	cancelReq, err := transaction.ParseCancelRequest(cancelJSON)
	if err != nil {
		fail("parsing cancel", err)
	}
	if _, ok, err := verifier.VerifyCancelRequest(cancelReq); !ok {
		fmt.Printf("✗ Cancel signature INVALID: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("✓ Cancel signature VALID")
}

func printRequest(title string, request any) {
	out, err := json.MarshalIndent(request, "", "  ")
	if err != nil {
		fail("marshaling request", err)
	}
	fmt.Println(title)
	fmt.Println(string(out))
	fmt.Println()
}

func printEnvelope(env *transaction.Envelope) {
	fmt.Printf("  tx_id: %s\n", env.TxID)
	fmt.Printf("  payload: %s\n\n", env.Payload)
}
