package models

import "encoding/xml"

// CAMT053Document is the subset of the ISO 20022 CAMT.053 schema this
// application reads. Field names follow the ISO element names.
type CAMT053Document struct {
	XMLName       xml.Name             `xml:"Document"`
	BkToCstmrStmt CAMT053BkToCstmrStmt `xml:"BkToCstmrStmt"`
}

// CAMT053BkToCstmrStmt is the bank-to-customer statement wrapper.
type CAMT053BkToCstmrStmt struct {
	Stmt []CAMT053Stmt `xml:"Stmt"`
}

// CAMT053Stmt is a single account statement.
type CAMT053Stmt struct {
	ID   string        `xml:"Id"`
	Acct CAMT053Acct   `xml:"Acct"`
	Ntry []CAMT053Ntry `xml:"Ntry"`
}

// CAMT053Acct identifies the statement's own account.
type CAMT053Acct struct {
	ID struct {
		IBAN string `xml:"IBAN"`
	} `xml:"Id"`
	Ccy string `xml:"Ccy"`
}

// CAMT053Amt is an amount element with its currency attribute.
type CAMT053Amt struct {
	Text string `xml:",chardata"`
	Ccy  string `xml:"Ccy,attr"`
}

// CAMT053Ntry is one statement entry. A batch entry carries several TxDtls.
type CAMT053Ntry struct {
	NtryRef      string          `xml:"NtryRef"`
	Amt          CAMT053Amt      `xml:"Amt"`
	CdtDbtInd    string          `xml:"CdtDbtInd"`
	Sts          string          `xml:"Sts"`
	BookgDt      CAMT053Date     `xml:"BookgDt"`
	ValDt        CAMT053Date     `xml:"ValDt"`
	AcctSvcrRef  string          `xml:"AcctSvcrRef"`
	NtryDtls     CAMT053NtryDtls `xml:"NtryDtls"`
	AddtlNtryInf string          `xml:"AddtlNtryInf"`
}

// CAMT053Date holds either a plain date or a date-time.
type CAMT053Date struct {
	Dt   string `xml:"Dt"`
	DtTm string `xml:"DtTm"`
}

// CAMT053NtryDtls wraps the transaction details of an entry.
type CAMT053NtryDtls struct {
	TxDtls []CAMT053TxDtls `xml:"TxDtls"`
}

// CAMT053TxDtls is one constituent transaction of an entry.
type CAMT053TxDtls struct {
	Refs      CAMT053Refs      `xml:"Refs"`
	Amt       CAMT053Amt       `xml:"Amt"`
	CdtDbtInd string           `xml:"CdtDbtInd"`
	RltdPties CAMT053RltdPties `xml:"RltdPties"`
	RmtInf    CAMT053RmtInf    `xml:"RmtInf"`
}

// CAMT053Refs carries the payment references of a transaction detail.
type CAMT053Refs struct {
	EndToEndID string `xml:"EndToEndId"`
	MndtID     string `xml:"MndtId"`
	TxID       string `xml:"TxId"`
}

// CAMT053RltdPties names debtor and creditor with their accounts.
type CAMT053RltdPties struct {
	Dbtr     CAMT053Party   `xml:"Dbtr"`
	DbtrAcct CAMT053Account `xml:"DbtrAcct"`
	Cdtr     CAMT053Party   `xml:"Cdtr"`
	CdtrAcct CAMT053Account `xml:"CdtrAcct"`
}

// CAMT053Party is a named party.
type CAMT053Party struct {
	Nm string `xml:"Nm"`
}

// CAMT053Account is a party's account identification.
type CAMT053Account struct {
	ID struct {
		IBAN string `xml:"IBAN"`
	} `xml:"Id"`
}

// CAMT053RmtInf carries the unstructured remittance lines.
type CAMT053RmtInf struct {
	Ustrd []string `xml:"Ustrd"`
}
