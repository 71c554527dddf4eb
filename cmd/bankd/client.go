package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hemachand1989/banking-design-patterns/bank/models"
	"github.com/hemachand1989/banking-design-patterns/internal/bankclient"
)

func client() *bankclient.Client {
	return bankclient.New(viper.GetString("server"), nil)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func amountArg(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("amount %q: %w", s, err)
	}
	return d, nil
}

func addClientCommands(root *cobra.Command) {
	account := &cobra.Command{Use: "account", Short: "manage accounts"}

	create := &cobra.Command{
		Use:   "create OWNER",
		Short: "open an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			typ, _ := cmd.Flags().GetString("type")
			initial, err := amountArg(mustString(cmd, "initial"))
			if err != nil {
				return err
			}
			a, err := client().CreateAccount(cmd.Context(), models.CreateAccount{
				OwnerName:      args[0],
				Type:           models.AccountType(typ),
				InitialDeposit: initial,
			})
			if err != nil {
				return err
			}
			return printJSON(a)
		},
	}
	create.Flags().String("type", string(models.AccountTypeChecking), "checking, savings, business or premium")
	create.Flags().String("initial", "0", "initial deposit")

	get := &cobra.Command{
		Use:   "get ID",
		Short: "show an account by id, or by number with --number",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			byNumber, _ := cmd.Flags().GetBool("number")
			var (
				a   *models.Account
				err error
			)
			if byNumber {
				a, err = client().FindAccount(cmd.Context(), args[0])
			} else {
				a, err = client().GetAccount(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			return printJSON(a)
		},
	}
	get.Flags().Bool("number", false, "treat the argument as an account number")

	list := &cobra.Command{
		Use:   "list",
		Short: "list accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			accounts, err := client().ListAccounts(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(accounts)
		},
	}

	history := &cobra.Command{
		Use:   "transactions ID",
		Short: "list an account's transactions, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			txs, err := client().ListTransactions(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(txs)
		},
	}
	account.AddCommand(create, get, list, history)

	movement := func(use, short string, run func(cmd *cobra.Command, id string, m models.MoneyMovement) (*models.Transaction, error)) *cobra.Command {
		c := &cobra.Command{
			Use:   use + " ACCOUNT_ID AMOUNT",
			Short: short,
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				amount, err := amountArg(args[1])
				if err != nil {
					return err
				}
				tx, err := run(cmd, args[0], models.MoneyMovement{Amount: amount, Description: mustString(cmd, "description")})
				if err != nil {
					return err
				}
				return printJSON(tx)
			},
		}
		c.Flags().String("description", "", "free text stored with the transaction")
		return c
	}
	deposit := movement("deposit", "deposit money", func(cmd *cobra.Command, id string, m models.MoneyMovement) (*models.Transaction, error) {
		return client().Deposit(cmd.Context(), id, m)
	})
	withdraw := movement("withdraw", "withdraw money, fees apply", func(cmd *cobra.Command, id string, m models.MoneyMovement) (*models.Transaction, error) {
		return client().Withdraw(cmd.Context(), id, m)
	})

	transfer := &cobra.Command{
		Use:   "transfer FROM_ID TO_ID AMOUNT",
		Short: "move money between accounts",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := amountArg(args[2])
			if err != nil {
				return err
			}
			t, err := client().Transfer(cmd.Context(), models.TransferRequest{
				FromAccountID: args[0],
				ToAccountID:   args[1],
				Amount:        amount,
				Description:   mustString(cmd, "description"),
			})
			if err != nil {
				return err
			}
			return printJSON(t)
		},
	}
	transfer.Flags().String("description", "", "free text stored with both legs")

	reverse := &cobra.Command{
		Use:   "reverse TRANSACTION_ID",
		Short: "reverse a completed transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			txs, err := client().Reverse(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(txs)
		},
	}

	loan := &cobra.Command{Use: "loan", Short: "loan applications"}
	apply := &cobra.Command{
		Use:   "apply AMOUNT CREDIT_SCORE",
		Short: "submit a loan application",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := amountArg(args[0])
			if err != nil {
				return err
			}
			var score int
			if _, err := fmt.Sscan(args[1], &score); err != nil {
				return fmt.Errorf("credit score %q: %w", args[1], err)
			}
			app, err := client().ApplyForLoan(cmd.Context(), models.LoanRequest{
				AccountID:   mustString(cmd, "account"),
				Amount:      amount,
				CreditScore: score,
				Purpose:     mustString(cmd, "purpose"),
			})
			if err != nil {
				return err
			}
			return printJSON(app)
		},
	}
	apply.Flags().String("account", "", "optional account id of the applicant")
	apply.Flags().String("purpose", "", "what the loan is for")

	loanGet := &cobra.Command{
		Use:   "get ID",
		Short: "show a loan application",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := client().GetLoan(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(app)
		},
	}
	loan.AddCommand(apply, loanGet)

	fee := &cobra.Command{Use: "fee", Short: "fee schedule"}
	quote := &cobra.Command{
		Use:   "quote ACCOUNT_TYPE AMOUNT",
		Short: "show the fee a withdrawal would cost",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := amountArg(args[1])
			if err != nil {
				return err
			}
			q, err := client().QuoteFee(cmd.Context(), models.AccountType(args[0]), amount)
			if err != nil {
				return err
			}
			return printJSON(q)
		},
	}
	fee.AddCommand(quote)

	interest := &cobra.Command{
		Use:   "accrue-interest [YYYY-MM]",
		Short: "credit monthly interest to savings accounts",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var p string
			if len(args) == 1 {
				p = args[0]
			}
			out, err := client().AccrueInterest(cmd.Context(), p)
			if err != nil {
				return err
			}
			return printJSON(out)
		},
	}

	undo := &cobra.Command{
		Use:   "undo",
		Short: "undo the last admin command",
		RunE: func(cmd *cobra.Command, args []string) error {
			return client().UndoLastCommand(cmd.Context())
		},
	}

	root.AddCommand(account, deposit, withdraw, transfer, reverse, loan, fee, interest, undo)
}

func mustString(cmd *cobra.Command, name string) string {
	s, _ := cmd.Flags().GetString(name)
	return s
}
