/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package contract

// Rejection names the rule a transaction violates.
// Rejections are sentinel values: compare them with errors.Is.
type Rejection struct {
	Name    string
	Message string
}

func (r *Rejection) Error() string {
	return r.Message
}

func reject(name, message string) *Rejection {
	return &Rejection{Name: name, Message: message}
}

var (
	ErrUnrecognisedCommand = reject("UnrecognisedCommand", "Exactly one obligation command is required.")
	ErrInvalidObligation   = reject("InvalidObligation", "The output obligation is not valid.")
)

// Issue
var (
	ErrIssueConsumesInputs    = reject("IssueConsumesInputs", "No inputs should be consumed when issuing an obligation.")
	ErrIssueOutputCount       = reject("IssueOutputCount", "Only one obligation state should be created when issuing an obligation.")
	ErrIssueNonPositiveAmount = reject("IssueNonPositiveAmount", "A newly issued obligation must have a positive amount.")
	ErrIssueSameParty         = reject("IssueSameParty", "The lender and borrower cannot be the same identity.")
	ErrIssueSigners           = reject("IssueSigners", "Both lender and borrower together only may sign obligation issue transaction.")
)

// Transfer
var (
	ErrTransferInputCount      = reject("TransferInputCount", "An obligation transfer transaction should only consume one input state.")
	ErrTransferOutputCount     = reject("TransferOutputCount", "An obligation transfer transaction should only create one output state.")
	ErrTransferOnlyLender      = reject("TransferOnlyLender", "Only the lender property may change.")
	ErrTransferLenderUnchanged = reject("TransferLenderUnchanged", "The lender property must change in a transfer.")
	ErrTransferSigners         = reject("TransferSigners", "The borrower, old lender and new lender only must sign an obligation transfer transaction")
)

// Settle
var (
	ErrSettleInputCount       = reject("SettleInputCount", "There must be one input obligation.")
	ErrSettleNoCash           = reject("SettleNoCash", "There must be output cash.")
	ErrSettleNoCashToLender   = reject("SettleNoCashToLender", "There must be output cash paid to the recipient.")
	ErrSettleOverpaid         = reject("SettleOverpaid", "The amount settled cannot be more than the amount outstanding.")
	ErrSettleUnexpectedOutput = reject("SettleUnexpectedOutput", "There must be no output obligation as it has been fully settled.")
	ErrSettleOutputCount      = reject("SettleOutputCount", "There must be one output obligation.")
	ErrSettleAmountChanged    = reject("SettleAmountChanged", "The amount may not change when settling.")
	ErrSettleBorrowerChanged  = reject("SettleBorrowerChanged", "The borrower may not change when settling.")
	ErrSettleLenderChanged    = reject("SettleLenderChanged", "The lender may not change when settling.")
	ErrSettleLinearIDChanged  = reject("SettleLinearIDChanged", "The linearId may not change when settling.")
	ErrSettlePaidIncorrect    = reject("SettlePaidIncorrect", "Paid property incorrectly updated.")
	ErrSettleSigners          = reject("SettleSigners", "Both lender and borrower together only must sign obligation settle transaction.")
)

// Cash
var (
	ErrCashCommand             = reject("CashCommand", "Exactly one cash command is required.")
	ErrCashIssueConsumesInputs = reject("CashIssueConsumesInputs", "No cash inputs should be consumed when issuing cash.")
	ErrCashNoOutputs           = reject("CashNoOutputs", "There must be output cash.")
	ErrCashNonPositive         = reject("CashNonPositive", "Output cash must have a positive amount.")
	ErrCashIssuerSigner        = reject("CashIssuerSigner", "The issuer must sign a cash issuance.")
	ErrCashMoveNoInputs        = reject("CashMoveNoInputs", "There must be input cash when moving cash.")
	ErrCashNotConserved        = reject("CashNotConserved", "The amounts of input and output cash must balance per token and issuer.")
	ErrCashOwnerSigners        = reject("CashOwnerSigners", "The owners of the input cash must sign a cash move.")
)
