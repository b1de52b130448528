package rider

const lastFourDigits = 4

// BankDetailsView is bank details without the account number
type BankDetailsView struct {
	AccountHolderName string      `json:"accountHolderName"`
	BankName          string      `json:"bankName"`
	BranchCode        string      `json:"branchCode,omitempty"`
	AccountType       AccountType `json:"accountType"`
	HasAccountNumber  bool        `json:"hasAccountNumber"`
}

// View is the outward representation of a profile. The shallower BankDetails
// field shadows the embedded one, so accountNumber never reaches JSON.
type View struct {
	Profile
	BankDetails *BankDetailsView `json:"bankDetails,omitempty"`
}

// RedactedView copies p with the account number removed
func RedactedView(p *Profile) View {
	cp := *p
	cp.BankDetails = nil
	v := View{Profile: cp}
	if bd := p.BankDetails; bd != nil {
		v.BankDetails = &BankDetailsView{
			AccountHolderName: bd.AccountHolderName,
			BankName:          bd.BankName,
			BranchCode:        bd.BranchCode,
			AccountType:       bd.AccountType,
			HasAccountNumber:  bd.HasAccountNumber || bd.AccountNumber != "",
		}
	}
	return v
}

// RedactedViews maps RedactedView over profiles
func RedactedViews(profiles []*Profile) []View {
	out := make([]View, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, RedactedView(p))
	}
	return out
}

// LastFour returns the final four digits of an account number
func LastFour(accountNumber string) string {
	if len(accountNumber) <= lastFourDigits {
		return accountNumber
	}
	return accountNumber[len(accountNumber)-lastFourDigits:]
}
