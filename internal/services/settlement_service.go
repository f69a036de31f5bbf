package services

import (
	"database/sql"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/moov-io/iso20022/pkg/common"
	"github.com/moov-io/iso20022/pkg/pacs_v08"
	"github.com/spf13/viper"

	"github.com/gemstore/backend/internal/audit"
	"github.com/gemstore/backend/internal/models"
)

// SettlementService exports approved bank-channel deposits as ISO 20022
// pacs.008 messages for reconciliation with the receiving banks.
type SettlementService struct {
	db    *sql.DB
	audit *audit.Logger
}

type settlementDeposit struct {
	transaction models.Transaction
	bankAddress string
}

func NewSettlementService(db *sql.DB, auditLogger *audit.Logger) *SettlementService {
	return &SettlementService{
		db:    db,
		audit: auditLogger,
	}
}

// ExportDeposits exports completed bank deposits as a pacs.008 document
// @Summary Export settlement file
// @Description Export completed bank-channel deposits since a date as ISO 20022 pacs.008 XML
// @Tags admin
// @Produce json
// @Param since query string false "Start date (YYYY-MM-DD), defaults to the last 7 days"
// @Success 200 {object} object{messageType=string,count=int,xml=string}
// @Failure 400 {string} string "Invalid date"
// @Failure 500 {string} string "Internal server error"
// @Router /admin/settlement/export [get]
func (s *SettlementService) ExportDeposits(w http.ResponseWriter, r *http.Request) {
	adminID, _ := r.Context().Value("userID").(string)

	since := time.Now().AddDate(0, 0, -7)
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			SendErrorResponse(w, "Invalid date, expected YYYY-MM-DD", http.StatusBadRequest, nil)
			return
		}
		since = parsed
	}

	deposits, err := s.completedBankDeposits(since)
	if err != nil {
		log.Printf("[SETTLEMENT] Deposit query failed: %v", err)
		SendErrorResponse(w, "Failed to export deposits", http.StatusInternalServerError, nil)
		return
	}

	doc := s.createPacs008(deposits)

	xmlData, err := s.convertToXML(doc)
	if err != nil {
		log.Printf("[SETTLEMENT] XML marshalling failed: %v", err)
		SendErrorResponse(w, "Failed to export deposits", http.StatusInternalServerError, nil)
		return
	}

	s.audit.LogAdminAction(adminID, "SETTLEMENT_EXPORT", fmt.Sprintf("since=%s count=%d", since.Format("2006-01-02"), len(deposits)))
	log.Printf("[SETTLEMENT] Exported %d deposits since %s", len(deposits), since.Format("2006-01-02"))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"messageType": "pacs.008.001.08",
		"count":       len(deposits),
		"xml":         xmlData,
	})
}

func (s *SettlementService) completedBankDeposits(since time.Time) ([]settlementDeposit, error) {
	rows, err := s.db.Query(`
		SELECT t.id, t.reference_id, t.account_id, t.amount, t.method, t.updated_at, c.address
		FROM transactions t
		JOIN payment_channels c ON c.name = t.method
		WHERE t.kind = $1 AND t.status = $2 AND c.kind = 'bank' AND t.updated_at >= $3
		ORDER BY t.updated_at ASC`,
		models.TxKindDeposit, models.TxStatusCompleted, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deposits []settlementDeposit
	for rows.Next() {
		var d settlementDeposit
		if err := rows.Scan(&d.transaction.ID, &d.transaction.ReferenceID, &d.transaction.AccountID,
			&d.transaction.Amount, &d.transaction.Method, &d.transaction.UpdatedAt, &d.bankAddress); err != nil {
			return nil, err
		}
		deposits = append(deposits, d)
	}

	return deposits, rows.Err()
}

// createPacs008 builds a pacs.008 FIToFICustomerCreditTransfer covering
// the whole deposit batch, one credit transfer per deposit.
func (s *SettlementService) createPacs008(deposits []settlementDeposit) *pacs_v08.FIToFICustomerCreditTransferV08 {
	currency := viper.GetString("settlement.currency")
	if currency == "" {
		currency = "USD"
	}

	msgId := uuid.New().String()
	creDtTm := time.Now()
	settlementDate := time.Now()

	var total float64
	for _, d := range deposits {
		total += float64(d.transaction.Amount)
	}

	doc := &pacs_v08.FIToFICustomerCreditTransferV08{
		GrpHdr: pacs_v08.GroupHeader93{
			MsgId:   common.Max35Text(msgId),
			CreDtTm: common.ISODateTime(creDtTm),
			NbOfTxs: common.Max15NumericText(fmt.Sprintf("%d", len(deposits))),
			TtlIntrBkSttlmAmt: &pacs_v08.ActiveCurrencyAndAmount{
				Ccy:   common.ActiveCurrencyCode(currency),
				Value: total,
			},
			IntrBkSttlmDt: (*common.ISODate)(&settlementDate),
			SttlmInf: pacs_v08.SettlementInstruction7{
				SttlmMtd: "CLRG",
			},
		},
	}

	for _, d := range deposits {
		txID := fmt.Sprintf("%d", d.transaction.ID)
		doc.CdtTrfTxInf = append(doc.CdtTrfTxInf, pacs_v08.CreditTransferTransaction39{
			PmtId: pacs_v08.PaymentIdentification7{
				InstrId:    &[]common.Max35Text{common.Max35Text(txID)}[0],
				EndToEndId: common.Max35Text(d.transaction.ReferenceID),
				TxId:       &[]common.Max35Text{common.Max35Text(txID)}[0],
			},
			IntrBkSttlmAmt: pacs_v08.ActiveCurrencyAndAmount{
				Ccy:   common.ActiveCurrencyCode(currency),
				Value: float64(d.transaction.Amount),
			},
			IntrBkSttlmDt: (*common.ISODate)(&settlementDate),
			ChrgBr:        "SLEV",
			Dbtr: pacs_v08.PartyIdentification135{
				Nm: &[]common.Max140Text{common.Max140Text(d.transaction.AccountID)}[0],
			},
			CdtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
				FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
					ClrSysMmbId: &pacs_v08.ClearingSystemMemberIdentification2{
						MmbId: common.Max35Text(d.bankAddress),
					},
				},
			},
			Cdtr: pacs_v08.PartyIdentification135{
				Nm: &[]common.Max140Text{common.Max140Text(d.transaction.Method)}[0],
			},
		})
	}

	return doc
}

func (s *SettlementService) convertToXML(doc any) (string, error) {
	xmlData, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal XML: %w", err)
	}
	return xml.Header + string(xmlData), nil
}
