package main

import (
	"fmt"
	"os"

	"github.com/cheynewallace/tabby"
	"github.com/urfave/cli/v2"

	"github.com/f3rmion/musig2-node/internal/log"
	"github.com/f3rmion/musig2-node/pkg/client"
)

func main() {
	app := cli.NewApp()
	app.Name = "MuSig2 Client"

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:  "operator",
			Value: "http://localhost:8000/",
			Usage: "operator base URL",
		},
	}

	app.Commands = append(app.Commands, &cli.Command{
		Name:   "participants",
		Usage:  "list registered signers",
		Action: participants,
	})

	app.Commands = append(app.Commands, &cli.Command{
		Name:   "sign",
		Usage:  "run a signing session over a message",
		Action: sign,
	})

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}

func participants(c *cli.Context) error {
	oc := client.NewOperatorClient(c.String("operator"))

	list, err := oc.Participants(c.Context)
	if err != nil {
		return err
	}

	t := tabby.New()
	t.AddHeader("Index", "Public Key", "Address")
	for _, p := range list {
		t.AddLine(p.Index, p.PublicKey, p.Address)
	}

	t.Print()

	return nil
}

func sign(c *cli.Context) error {

	if c.Args().Len() != 1 {
		fmt.Println("Provide a message to sign")
		return nil
	}

	message := c.Args().Get(0)
	oc := client.NewOperatorClient(c.String("operator"))

	res, err := oc.Sign(c.Context, message)
	if err != nil {
		return err
	}

	t := tabby.New()
	t.AddHeader("Session", "Aggregated Key", "Signature", "Valid")
	t.AddLine(res.SessionID, res.AggregatedPubkey, res.FinalSignature, res.IsValid)
	t.Print()

	return nil
}
